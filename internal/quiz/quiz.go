// Package quiz runs comprehension checks against the active task. A session
// either carries generated objective questions or, when the service cannot
// produce them, falls back to weighted self-assessment. Scoring and the
// task-state consequences of a result live here so callers only ever see a
// Session in and a Result out.
package quiz

import (
	"context"
	"math"

	"go.uber.org/zap"

	"flowdesk/internal/dispatch"
	"flowdesk/internal/prompt"
	"flowdesk/internal/types"
)

// PassThreshold is the minimum score that completes the task.
const PassThreshold = 60

// QuestionCount is how many questions a session asks.
const QuestionCount = 3

// Mode distinguishes how a session's answers are scored.
type Mode string

const (
	// ModeObjective scores against generated right answers.
	ModeObjective Mode = "quiz"
	// ModeSelf scores the user's own readiness ratings by weight.
	ModeSelf Mode = "self"
)

// Question is one entry in a session. Objective questions carry Correct;
// self-assessment questions carry per-option Weights instead.
type Question struct {
	Prompt  string
	Options []string
	Correct int
	Weights []int
}

// Session is a quiz in progress for one task.
type Session struct {
	TaskID    string
	Mode      Mode
	Questions []Question
}

// Result is the scored outcome of a finished session.
type Result struct {
	Score  int
	Passed bool
	Mode   Mode
}

// Dispatcher is the slice of the dispatch engine quiz generation needs.
type Dispatcher interface {
	Send(ctx context.Context, req dispatch.Request) (types.Payload, error)
}

// Generator creates sessions, preferring generated objective questions.
type Generator struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewGenerator(d Dispatcher, logger *zap.Logger) *Generator {
	return &Generator{dispatcher: d, logger: logger.Named("quiz")}
}

// Generate builds a session for the task. Any dispatch failure, and any
// reply without usable questions, degrades to self-assessment rather than
// surfacing an error: a quiz must always be available.
func (g *Generator) Generate(ctx context.Context, task types.Task) Session {
	payload, err := g.dispatcher.Send(ctx, dispatch.Request{
		Instruction: prompt.BuildQuizInstruction(task.Text, QuestionCount),
		UserText:    "Generate the quiz now.",
		Mode:        dispatch.Structured,
	})
	if err != nil {
		g.logger.Info("quiz generation failed, using self-assessment", zap.Error(err))
		return selfSession(task.ID)
	}

	questions := objectiveQuestions(payload.Quiz)
	if len(questions) == 0 {
		g.logger.Warn("quiz reply had no usable questions, using self-assessment")
		return selfSession(task.ID)
	}

	return Session{TaskID: task.ID, Mode: ModeObjective, Questions: questions}
}

// objectiveQuestions filters generated questions down to well-formed ones.
func objectiveQuestions(qs []types.ObjectiveQuestion) []Question {
	var out []Question
	for _, q := range qs {
		if q.Question == "" || len(q.Options) < 2 || q.Correct < 0 || q.Correct >= len(q.Options) {
			continue
		}
		out = append(out, Question{Prompt: q.Question, Options: q.Options, Correct: q.Correct})
	}
	return out
}

// selfSession is the offline fallback: the user rates their own readiness
// and the rating weights stand in for correctness.
func selfSession(taskID string) Session {
	return Session{
		TaskID: taskID,
		Mode:   ModeSelf,
		Questions: []Question{
			{
				Prompt:  "How well could you explain this topic to someone else?",
				Options: []string{"Clearly and completely", "Mostly, with small gaps", "Only the rough idea", "Not at all"},
				Weights: []int{100, 70, 35, 0},
			},
			{
				Prompt:  "Could you apply it to a new problem without references?",
				Options: []string{"Yes, confidently", "Yes, with some checking", "Only by following examples", "No"},
				Weights: []int{100, 65, 30, 0},
			},
			{
				Prompt:  "Do you know where this approach breaks down?",
				Options: []string{"Yes, with concrete cases", "Some limitations", "Vaguely", "I had not considered that"},
				Weights: []int{100, 75, 40, 10},
			},
		},
	}
}

// Score computes the session's score from the selected option indices.
// Objective sessions score the fraction answered correctly; self sessions
// average the weights of the chosen options. Out-of-range answers count as
// wrong (weight zero).
func Score(s Session, answers []int) int {
	if len(s.Questions) == 0 {
		return 0
	}

	switch s.Mode {
	case ModeSelf:
		total := 0
		for i, q := range s.Questions {
			if i < len(answers) && answers[i] >= 0 && answers[i] < len(q.Weights) {
				total += q.Weights[answers[i]]
			}
		}
		return int(math.Round(float64(total) / float64(len(s.Questions))))
	default:
		correct := 0
		for i, q := range s.Questions {
			if i < len(answers) && answers[i] == q.Correct {
				correct++
			}
		}
		return int(math.Round(100 * float64(correct) / float64(len(s.Questions))))
	}
}

// Finish scores the answers and packages the result.
func Finish(s Session, answers []int) Result {
	score := Score(s, answers)
	return Result{Score: score, Passed: score >= PassThreshold, Mode: s.Mode}
}

// Apply records a result's consequence on the task: a pass completes it, a
// fail escalates its priority so it resurfaces at the top of the list.
func Apply(task *types.Task, r Result) {
	if r.Passed {
		task.Done = true
		return
	}
	task.Priority = types.PriorityHigh
}

// Comprehension is the rolling understanding signal: the mean of the most
// recent five quiz scores, rounded. An empty history reads as zero.
func Comprehension(scores []int) int {
	if len(scores) == 0 {
		return 0
	}
	if len(scores) > 5 {
		scores = scores[len(scores)-5:]
	}
	total := 0
	for _, s := range scores {
		total += s
	}
	return int(math.Round(float64(total) / float64(len(scores))))
}
