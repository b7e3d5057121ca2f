// Package types holds the shared data model for the FlowDesk engine:
// behavioral states, activity signals, tasks, chat messages and quiz
// questions. Everything here is plain data; behavior lives in the
// component packages.
package types

import (
	"time"

	"github.com/google/uuid"
)

// BehavioralState is the classified cognitive state derived from activity
// signals. It is never stored authoritatively; it is recomputed from the
// latest snapshot plus the override window every tick.
type BehavioralState string

const (
	StateFocus      BehavioralState = "focus"
	StateShallow    BehavioralState = "shallow"
	StateDistracted BehavioralState = "distracted"
	StateBurnout    BehavioralState = "burnout"
)

// ActivitySignals is the rolling telemetry snapshot emitted once per tick.
// It is recomputed wholesale; consumers never see partial mutations.
type ActivitySignals struct {
	IdleSeconds         int `json:"idle_seconds"`
	KeystrokesPerMinute int `json:"keystrokes_per_minute"`
	TabSwitches         int `json:"tab_switches"`
	SessionMinutes      int `json:"session_minutes"`
}

// Priority orders tasks. Lower Rank sorts first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the sort position of a priority (high first). Unknown values
// sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Task is owned by the surrounding task-list collaborator; the engine reads
// it and, via quiz results, flips Done or escalates Priority.
type Task struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Priority  Priority `json:"priority"`
	Done      bool     `json:"done"`
	StudyMode bool     `json:"study_mode"`
}

// NewTask creates an incomplete medium-priority task.
func NewTask(text string) Task {
	return Task{ID: uuid.NewString(), Text: text, Priority: PriorityMedium}
}

// Intent is the structural category of an assistant response.
type Intent string

const (
	IntentCode    Intent = "code"
	IntentExplain Intent = "explain"
	IntentCompare Intent = "compare"
	IntentQuiz    Intent = "quiz"
	IntentGeneral Intent = "general"
)

// TaskType is derived from a task (explicit study flag, else keyword match)
// and selects the response-shaping rule the prompt builder uses.
type TaskType string

const (
	TaskCode    TaskType = "code"
	TaskStudy   TaskType = "study"
	TaskReview  TaskType = "review"
	TaskDesign  TaskType = "design"
	TaskGeneral TaskType = "general"
)

// Role tags a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CodeBlock is the runnable-snippet extension for code-intent responses.
type CodeBlock struct {
	Snippet  string `json:"snippet"`
	Language string `json:"language"`
}

// Concept is one card in an explain-intent response.
type Concept struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Comparison is the trade-off table for compare-intent responses.
type Comparison struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ObjectiveQuestion is a multiple-choice question with exactly one right
// answer. Correct is the 0-based index into Options.
type ObjectiveQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  int      `json:"correct"`
}

// Payload is the structured body of an assistant response. Only the fields
// matching Intent are populated.
type Payload struct {
	Intent     Intent              `json:"intent"`
	Text       string              `json:"text"`
	Code       *CodeBlock          `json:"code,omitempty"`
	Concepts   []Concept           `json:"concepts,omitempty"`
	Comparison *Comparison         `json:"comparison,omitempty"`
	Quiz       []ObjectiveQuestion `json:"quiz,omitempty"`
}

// ChatMessage is one entry in the append-only conversation. Ordering is
// arrival order; entries are never reordered or mutated after insertion.
// TaskID records whichever task was active when the message was sent, even
// if the active task changed while a dispatch was in flight.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	TaskID    string    `json:"task_id,omitempty"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage stamps a payload into a chat message.
func NewMessage(role Role, taskID string, p Payload, now time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		TaskID:    taskID,
		Payload:   p,
		Timestamp: now,
	}
}

// ApiStatus reports the outcome of the most recent dispatch. Observability
// only; it never gates functionality.
type ApiStatus string

const (
	StatusUnknown   ApiStatus = "unknown"
	StatusOK        ApiStatus = "ok"
	StatusNoKey     ApiStatus = "no_key"
	StatusRateLimit ApiStatus = "rate_limit"
	StatusError     ApiStatus = "error"
)

// Suggestion is one quick-send chip. Chips send Text through the structured
// contract; Label is presentation-only.
type Suggestion struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}
