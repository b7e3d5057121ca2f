// Package chat owns the conversation: an append-only message log, a single
// in-flight dispatch at a time, and the service-status signal derived from
// each dispatch outcome. When no credential is configured it answers from
// the offline fallback instead of failing.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"flowdesk/internal/dispatch"
	"flowdesk/internal/fallback"
	"flowdesk/internal/prompt"
	"flowdesk/internal/types"
)

// ErrEmptyMessage rejects whitespace-only sends before they reach the log.
var ErrEmptyMessage = errors.New("empty message")

// Dispatcher is the slice of the dispatch engine the chat needs.
type Dispatcher interface {
	Send(ctx context.Context, req dispatch.Request) (types.Payload, error)
}

// Chat is the conversation engine. One dispatch may be in flight at a time;
// concurrent sends are rejected with dispatch.ErrBusy rather than queued.
type Chat struct {
	mu         sync.Mutex
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	messages []types.ChatMessage
	busy     bool
	status   types.ApiStatus
}

// New creates an empty conversation.
func New(d Dispatcher, logger *zap.Logger, now func() time.Time) *Chat {
	if now == nil {
		now = time.Now
	}
	return &Chat{
		dispatcher: d,
		logger:     logger.Named("chat"),
		now:        now,
		status:     types.StatusUnknown,
	}
}

// Messages returns a snapshot of the conversation in arrival order.
func (c *Chat) Messages() []types.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Status reports the outcome of the most recent dispatch. It is
// observability only and never gates sending.
func (c *Chat) Status() types.ApiStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Busy reports whether a dispatch is in flight.
func (c *Chat) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Welcome opens the conversation for a task.
func (c *Chat) Welcome(task types.Task) types.ChatMessage {
	text := fmt.Sprintf("Locked in on %q. Ask me anything about it, or pick a suggestion below.", task.Text)
	return c.appendAssistant(task.ID, types.Payload{Intent: types.IntentGeneral, Text: text})
}

// SwitchContext notes a change of active task in the log.
func (c *Chat) SwitchContext(task types.Task) types.ChatMessage {
	text := fmt.Sprintf("Context switched. Now working on %q.", task.Text)
	return c.appendAssistant(task.ID, types.Payload{Intent: types.IntentGeneral, Text: text})
}

// Send dispatches the user's text against the active task and appends both
// sides of the exchange. The reply is tagged with the task that was active
// when the send started, even if the active task changes while the dispatch
// is in flight. A second Send while one is in flight returns
// dispatch.ErrBusy without touching the log.
func (c *Chat) Send(ctx context.Context, userText string, contract prompt.Contract, activeTask types.Task, allTasks []types.Task, state types.BehavioralState) (types.ChatMessage, error) {
	if strings.TrimSpace(userText) == "" {
		return types.ChatMessage{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return types.ChatMessage{}, dispatch.ErrBusy
	}
	c.busy = true

	sendTaskID := activeTask.ID
	c.messages = append(c.messages, types.NewMessage(types.RoleUser, sendTaskID,
		types.Payload{Intent: types.IntentGeneral, Text: userText}, c.now()))
	history := make([]types.ChatMessage, len(c.messages)-1)
	copy(history, c.messages[:len(c.messages)-1])
	c.mu.Unlock()

	mode := dispatch.Structured
	if contract == prompt.Freeform {
		mode = dispatch.Freeform
	}

	payload, err := c.dispatcher.Send(ctx, dispatch.Request{
		Instruction: prompt.Build(activeTask, allTasks, state, contract),
		History:     history,
		UserText:    userText,
		Mode:        mode,
	})
	status := statusFor(err)

	// Every dispatch failure degrades to the offline responder. The only
	// user-visible trace of the failure mode is the status signal.
	if err != nil {
		if !errors.Is(err, dispatch.ErrNoCredential) {
			c.logger.Warn("dispatch failed, serving fallback", zap.Error(err))
		}
		payload = fallback.Respond(userText, &activeTask)
	}

	c.mu.Lock()
	c.busy = false
	c.status = status
	msg := types.NewMessage(types.RoleAssistant, sendTaskID, payload, c.now())
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	return msg, nil
}

func (c *Chat) appendAssistant(taskID string, p types.Payload) types.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := types.NewMessage(types.RoleAssistant, taskID, p, c.now())
	c.messages = append(c.messages, msg)
	return msg
}

// statusFor maps a dispatch outcome to the service-status signal. A reply
// that arrived but could not be parsed still counts as an error: the status
// reflects whether usable content came back, not whether bytes did.
func statusFor(err error) types.ApiStatus {
	if err == nil {
		return types.StatusOK
	}

	var rle *dispatch.RateLimitError
	switch {
	case errors.Is(err, dispatch.ErrNoCredential):
		return types.StatusNoKey
	case errors.As(err, &rle):
		return types.StatusRateLimit
	default:
		return types.StatusError
	}
}
