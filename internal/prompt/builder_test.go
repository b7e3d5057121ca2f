package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"flowdesk/internal/types"
)

func TestClassifyTaskType(t *testing.T) {
	tests := []struct {
		name string
		task types.Task
		want types.TaskType
	}{
		{"study_flag_wins", types.Task{Text: "Write the billing service", StudyMode: true}, types.TaskStudy},
		{"code_verbs", types.Task{Text: "Implement retry logic for the uploader"}, types.TaskCode},
		{"pull_request", types.Task{Text: "Open a PR for the schema change"}, types.TaskCode},
		{"review_verbs", types.Task{Text: "Review the Q3 incident report"}, types.TaskReview},
		{"design_verbs", types.Task{Text: "Plan the migration strategy"}, types.TaskDesign},
		{"no_keywords", types.Task{Text: "Email the vendor about renewal"}, types.TaskGeneral},
		{"word_boundary", types.Task{Text: "decode the survey results"}, types.TaskGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTaskType(tt.task))
		})
	}
}

func TestBuildLocksTaskAndState(t *testing.T) {
	active := types.Task{ID: "t1", Text: "Implement the parser", Priority: types.PriorityHigh}
	others := []types.Task{
		active,
		{ID: "t2", Text: "Review onboarding docs", Priority: types.PriorityLow},
		{ID: "t3", Text: "Done already", Priority: types.PriorityMedium, Done: true},
	}

	out := Build(active, others, types.StateFocus, Structured)

	assert.Contains(t, out, `"Implement the parser"`)
	assert.Contains(t, out, "Priority: HIGH | Type: code")
	assert.Contains(t, out, "STRICT MODE (Deep Focus)")
	assert.Contains(t, out, "do NOT switch")
	assert.Contains(t, out, "- [LOW] Review onboarding docs")
	assert.NotContains(t, out, "Done already", "completed tasks are not listed")
	assert.NotContains(t, out, "- [HIGH] Implement the parser", "active task is not in the pending list")
	assert.Contains(t, out, "Respond ONLY with valid JSON")
}

func TestBuildFreeformContract(t *testing.T) {
	active := types.Task{ID: "t1", Text: "Plan the migration", Priority: types.PriorityMedium}

	out := Build(active, []types.Task{active}, types.StateShallow, Freeform)

	assert.Contains(t, out, "plain conversational text")
	assert.NotContains(t, out, "Respond ONLY with valid JSON")
	assert.Contains(t, out, "STANDARD MODE")
}

func TestBuildStateRules(t *testing.T) {
	active := types.Task{ID: "t1", Text: "Write the report"}

	tests := []struct {
		state types.BehavioralState
		want  string
	}{
		{types.StateFocus, "STRICT MODE"},
		{types.StateShallow, "STANDARD MODE"},
		{types.StateDistracted, "RE-ENGAGE MODE"},
		{types.StateBurnout, "GENTLE MODE"},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			out := Build(active, nil, tt.state, Structured)
			assert.Contains(t, out, tt.want)
		})
	}

	// Unknown states fall back to the standard rules.
	out := Build(active, nil, types.BehavioralState("mystery"), Structured)
	assert.Contains(t, out, "STANDARD MODE")
}

func TestBuildStudyModeNote(t *testing.T) {
	active := types.Task{ID: "t1", Text: "Learn goroutine scheduling", StudyMode: true}
	out := Build(active, nil, types.StateShallow, Structured)

	assert.Contains(t, out, "Study Mode: ON")
	assert.Contains(t, out, "Type: study")
}

func TestBuildQuizInstruction(t *testing.T) {
	out := BuildQuizInstruction("Learn SQL window functions", 3)

	assert.Contains(t, out, "Generate 3 multiple choice questions")
	assert.Contains(t, out, `"Learn SQL window functions"`)
	assert.Contains(t, out, `"quiz": [`)
}

func TestSuggestionsPerTaskType(t *testing.T) {
	code := Suggestions(types.Task{Text: "Implement caching"})
	assert.Len(t, code, 4)
	assert.Equal(t, "Write the code", code[0].Label)
	assert.True(t, strings.Contains(code[0].Text, "Implement caching"))

	study := Suggestions(types.Task{Text: "anything", StudyMode: true})
	assert.Equal(t, "Quiz me", study[1].Label)

	general := Suggestions(types.Task{Text: "Call the accountant"})
	assert.Equal(t, "Help me start", general[0].Label)
}
