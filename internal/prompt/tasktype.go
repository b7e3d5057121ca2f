// Package prompt composes the instruction payload the dispatch engine sends
// to the completion service. The instruction is assembled from three
// inputs: the active task (which fixes the response shape), the behavioral
// state (which fixes tone and strictness), and the contract (structured
// JSON vs freeform text) selected by the caller.
package prompt

import (
	"regexp"
	"strings"

	"flowdesk/internal/types"
)

var (
	codeWords   = regexp.MustCompile(`\b(write|code|implement|build|test|debug|fix|refactor|script|function|api|deploy|pr|pull request)\b`)
	reviewWords = regexp.MustCompile(`\b(review|read|check|audit|analyze|inspect|evaluate|feedback)\b`)
	designWords = regexp.MustCompile(`\b(design|plan|architect|structure|organize|map|outline|strategy|research)\b`)
)

// ClassifyTaskType derives the response-shaping category for a task. The
// explicit study flag wins; otherwise the task text is matched against the
// code, review and design vocabularies in that order.
func ClassifyTaskType(task types.Task) types.TaskType {
	if task.StudyMode {
		return types.TaskStudy
	}
	t := strings.ToLower(task.Text)
	switch {
	case codeWords.MatchString(t):
		return types.TaskCode
	case reviewWords.MatchString(t):
		return types.TaskReview
	case designWords.MatchString(t):
		return types.TaskDesign
	default:
		return types.TaskGeneral
	}
}
