package dispatch

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"flowdesk/internal/config"
	"flowdesk/internal/types"
)

// Mode selects how the completion text is interpreted.
type Mode int

const (
	// Structured expects a single JSON object somewhere in the reply and
	// decodes it into a payload.
	Structured Mode = iota
	// Freeform takes the reply verbatim as explanatory text.
	Freeform
)

// Request carries one dispatch to the completion service.
type Request struct {
	Instruction string
	History     []types.ChatMessage
	UserText    string
	Mode        Mode
}

// Engine turns chat requests into typed payloads. It owns the message
// assembly rules: a system instruction first, then a bounded window of
// recent history, then the user's text.
type Engine struct {
	completer Completer
	cfg       config.DispatchConfig
	logger    *zap.Logger
}

// NewEngine wires an engine around a completer.
func NewEngine(completer Completer, cfg config.DispatchConfig, logger *zap.Logger) *Engine {
	return &Engine{
		completer: completer,
		cfg:       cfg,
		logger:    logger.Named("dispatch"),
	}
}

// Send dispatches the request and decodes the reply per its mode.
func (e *Engine) Send(ctx context.Context, req Request) (types.Payload, error) {
	messages := e.assemble(req)

	text, err := e.completer.Complete(ctx, messages)
	if err != nil {
		return types.Payload{}, err
	}

	if req.Mode == Freeform {
		return types.Payload{Intent: types.IntentGeneral, Text: text}, nil
	}

	return decodeStructured(text)
}

// assemble builds the message list: instruction, bounded history window,
// current user text. Each history entry is flattened to its display text
// and truncated so one oversized message cannot blow the context budget.
func (e *Engine) assemble(req Request) []Message {
	messages := make([]Message, 0, len(req.History)+2)
	messages = append(messages, Message{Role: "system", Content: req.Instruction})

	history := req.History
	if limit := e.cfg.HistoryMessages; limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	for _, m := range history {
		messages = append(messages, Message{
			Role:    string(m.Role),
			Content: truncateRunes(m.Payload.Text, e.cfg.HistoryCharBudget),
		})
	}

	messages = append(messages, Message{Role: "user", Content: req.UserText})
	return messages
}

// decodeStructured locates the JSON object in the reply and unmarshals it.
// Missing braces or malformed JSON both surface as *ParseError carrying a
// bounded snippet of the offending text.
func decodeStructured(text string) (types.Payload, error) {
	span := extractObjectSpan(text)
	if span == "" {
		return types.Payload{}, &ParseError{Snippet: snippet(text)}
	}

	var payload types.Payload
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return types.Payload{}, &ParseError{Snippet: snippet(span)}
	}

	if payload.Intent == "" {
		payload.Intent = types.IntentGeneral
	}
	return payload, nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
