package prompt

import (
	"fmt"

	"flowdesk/internal/types"
)

// Suggestions returns the four quick-send chips for a task. Chip sends go
// through the structured contract; typed input goes through freeform.
func Suggestions(task types.Task) []types.Suggestion {
	name := task.Text

	switch ClassifyTaskType(task) {
	case types.TaskCode:
		return []types.Suggestion{
			{Label: "Write the code", Text: fmt.Sprintf("Write the implementation for %q", name)},
			{Label: "Write tests", Text: fmt.Sprintf("Write unit tests for %q", name)},
			{Label: "Explain approach", Text: fmt.Sprintf("Explain the best approach for %q", name)},
			{Label: "Common mistakes", Text: fmt.Sprintf("What are common mistakes when doing %q?", name)},
		}
	case types.TaskStudy:
		return []types.Suggestion{
			{Label: "Explain concepts", Text: fmt.Sprintf("Explain the key concepts for %q", name)},
			{Label: "Quiz me", Text: fmt.Sprintf("Quiz me on %q", name)},
			{Label: "Give examples", Text: fmt.Sprintf("Give me real-world examples for %q", name)},
			{Label: "Learning path", Text: fmt.Sprintf("What's the best way to learn %q step by step?", name)},
		}
	case types.TaskReview:
		return []types.Suggestion{
			{Label: "Checklist", Text: fmt.Sprintf("Give me a review checklist for %q", name)},
			{Label: "What to look for", Text: fmt.Sprintf("What should I look for when doing %q?", name)},
			{Label: "Red flags", Text: fmt.Sprintf("What are common red flags when doing %q?", name)},
			{Label: "Best practices", Text: fmt.Sprintf("What are best practices for %q?", name)},
		}
	case types.TaskDesign:
		return []types.Suggestion{
			{Label: "Compare options", Text: fmt.Sprintf("Compare different approaches for %q", name)},
			{Label: "Structure it", Text: fmt.Sprintf("Help me structure a plan for %q", name)},
			{Label: "Key considerations", Text: fmt.Sprintf("What are the key things to consider for %q?", name)},
			{Label: "Trade-offs", Text: fmt.Sprintf("What are the trade-offs for %q?", name)},
		}
	default:
		return []types.Suggestion{
			{Label: "Help me start", Text: fmt.Sprintf("How do I get started on %q?", name)},
			{Label: "Break it down", Text: fmt.Sprintf("Break down %q into smaller steps", name)},
			{Label: "Approaches", Text: fmt.Sprintf("What are the different ways to approach %q?", name)},
			{Label: "Done criteria", Text: fmt.Sprintf("What does \"done\" look like for %q?", name)},
		}
	}
}
