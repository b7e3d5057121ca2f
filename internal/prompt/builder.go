package prompt

import (
	"fmt"
	"strings"

	"flowdesk/internal/types"
)

// Contract selects the response format the instruction demands. The caller
// chooses it: suggestion-chip sends use Structured, directly typed messages
// use Freeform. It is never inferred from the message text.
type Contract int

const (
	// Structured requires a JSON payload with typed intent fields.
	Structured Contract = iota
	// Freeform requires plain text with no schema.
	Freeform
)

// typeInstructions shape the response per task type.
var typeInstructions = map[types.TaskType]string{
	types.TaskCode: `This is a CODE task. Prioritize working code. Always include a "code" block with real, runnable code. Explain the approach briefly in "text". Use intent="code".`,
	types.TaskStudy: `This is a STUDY task. Explain concepts clearly using "concepts" cards (3-5 items). Use simple language. End "text" with "Want me to quiz you on this?". Use intent="explain" for explanations and intent="quiz" when testing.`,
	types.TaskReview: `This is a REVIEW task. Use structured bullet points in your "text". Be concise and direct. Help the user know exactly what to look for. Use intent="explain" or intent="general".`,
	types.TaskDesign: `This is a DESIGN/PLANNING task. Use "comparison" tables when comparing options. Structure your response as clear sections. Use intent="compare" for trade-offs, intent="explain" for concepts.`,
	types.TaskGeneral: `Help the user complete this task efficiently. Pick the most appropriate intent.`,
}

// stateRules set tone and strictness per behavioral state.
var stateRules = map[types.BehavioralState]string{
	types.StateFocus: `STRICT MODE (Deep Focus):
- ONLY discuss the active task. If the user asks anything unrelated, respond: {"intent":"general","text":"I'm locked to your task in Deep Focus. Switch tasks to change context."}
- Keep responses SHORT and direct. Code over explanation. No filler words.
- Respond like a senior engineer in a pairing session: terse, precise, actionable.`,
	types.StateShallow: `STANDARD MODE:
- Help the user complete the active task. Normal detail level.
- If they drift off-topic, redirect gently: "Getting back to your task ..."
- Be friendly but efficient.`,
	types.StateDistracted: `RE-ENGAGE MODE (user is idle/distracted):
- Keep responses SHORT. Max 2-3 sentences in "text".
- Start with a motivating nudge like "Let's knock this out" or "Quick win:"
- Bias toward the simplest next step, not deep explanation.
- Make it feel easy to start. Lower the activation energy.`,
	types.StateBurnout: `GENTLE MODE (long session detected):
- Be warm and encouraging. Acknowledge the effort.
- Suggest breaking the task into a tiny next step.
- If the task allows, suggest saving progress and taking a break.
- Keep responses calm and low-pressure.`,
}

const structuredFormat = `## Response Format
Respond ONLY with valid JSON. No markdown fences. No text outside the JSON.

{
  "intent": "code" | "explain" | "compare" | "quiz" | "general",
  "text": "your response",
  "code": { "snippet": "...", "language": "go" },
  "concepts": [{ "term": "...", "definition": "one clear sentence" }],
  "comparison": { "headers": ["A", "B"], "rows": [["...", "..."]] },
  "quiz": [{ "question": "...", "options": ["a","b","c","d"], "correct": 0 }]
}

Only include the fields that match the chosen intent.`

const freeformFormat = `## Response Format
Respond in plain conversational text. Do NOT emit JSON or code fences around the whole reply.`

// Build composes the full system instruction for a dispatch. Other pending
// tasks appear as inert context only; the instruction forbids switching off
// the locked task.
func Build(activeTask types.Task, allTasks []types.Task, state types.BehavioralState, contract Contract) string {
	taskType := ClassifyTaskType(activeTask)

	var pending []string
	for _, t := range allTasks {
		if !t.Done && t.ID != activeTask.ID {
			pending = append(pending, fmt.Sprintf("- [%s] %s", strings.ToUpper(string(t.Priority)), t.Text))
		}
	}
	otherPending := "(none)"
	if len(pending) > 0 {
		otherPending = strings.Join(pending, "\n")
	}

	rules, ok := stateRules[state]
	if !ok {
		rules = stateRules[types.StateShallow]
	}

	studyNote := ""
	if activeTask.StudyMode {
		studyNote = " | Study Mode: ON"
	}

	format := structuredFormat
	if contract == Freeform {
		format = freeformFormat
	}

	return fmt.Sprintf(`You are FlowDesk AI, a task-focused assistant. You are locked to ONE task at a time. The workspace adapts around the user's cognitive state, and so do your responses.

## ACTIVE TASK
%q
Priority: %s | Type: %s%s

## Task Instructions
%s

## Behavioral State: %s
%s

## Other tasks (background only, do NOT switch)
%s

%s`,
		activeTask.Text,
		strings.ToUpper(string(activeTask.Priority)),
		taskType,
		studyNote,
		typeInstructions[taskType],
		strings.ToUpper(string(state)),
		rules,
		otherPending,
		format,
	)
}

// BuildQuizInstruction asks the service for n objective multiple-choice
// questions scoped to a task, wrapped in a single JSON object so the
// structured extraction path applies.
func BuildQuizInstruction(taskText string, n int) string {
	return fmt.Sprintf(`Generate %d multiple choice questions that test real understanding of: %q

Return ONLY this JSON format:
{"intent": "quiz", "text": "", "quiz": [{"question": "...", "options": ["...", "...", "...", "..."], "correct": 0}]}

Requirements:
- Questions must test actual knowledge (concepts, how things work, why decisions are made)
- One distractor option should be a common misconception
- "correct" is the 0-based index of the only right answer
- Keep options under 8 words each
- Do NOT ask self-assessment questions ("how confident are you...")`, n, taskText)
}
