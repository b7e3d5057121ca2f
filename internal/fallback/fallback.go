// Package fallback produces fully-formed offline responses when no
// completion service is reachable. Intent is guessed from the user's text
// with keyword patterns, and every response carries the same payload shape
// the live service would return, so rendering code never branches on the
// source.
package fallback

import (
	"fmt"
	"regexp"
	"strings"

	"flowdesk/internal/types"
)

var (
	codeWords    = regexp.MustCompile(`\b(code|snippet|write|implement|function|script|example)\b`)
	explainWords = regexp.MustCompile(`\b(explain|what is|how does|describe|definition|concept)\b`)
	compareWords = regexp.MustCompile(`\b(compare|versus|vs\.?|difference|tradeoffs?)\b`)
	quizWords    = regexp.MustCompile(`\b(quiz|test me|questions?|check my)\b`)
)

// detectIntent guesses the response category from the user's text. Code wins
// ties because a request mentioning both code and explanation usually wants
// the snippet.
func detectIntent(text string) types.Intent {
	lower := strings.ToLower(text)
	switch {
	case codeWords.MatchString(lower):
		return types.IntentCode
	case compareWords.MatchString(lower):
		return types.IntentCompare
	case quizWords.MatchString(lower):
		return types.IntentQuiz
	case explainWords.MatchString(lower):
		return types.IntentExplain
	default:
		return types.IntentGeneral
	}
}

// Respond builds an offline payload for the user's text. The active task is
// only used to keep wording on-topic; it may be nil.
func Respond(userText string, task *types.Task) types.Payload {
	topic := "your current task"
	if task != nil && task.Text != "" {
		topic = fmt.Sprintf("%q", task.Text)
	}

	switch detectIntent(userText) {
	case types.IntentCode:
		return codePayload(topic)
	case types.IntentExplain:
		return explainPayload(topic)
	case types.IntentCompare:
		return comparePayload()
	case types.IntentQuiz:
		return quizPayload(topic)
	default:
		return generalPayload(topic)
	}
}

func codePayload(topic string) types.Payload {
	return types.Payload{
		Intent: types.IntentCode,
		Text:   fmt.Sprintf("Offline mode: here is a starting skeleton for %s. Fill in the marked sections and iterate in small steps.", topic),
		Code: &types.CodeBlock{
			Language: "text",
			Snippet: strings.Join([]string{
				"// 1. State the input and the expected output.",
				"// 2. Write the smallest case by hand first.",
				"// 3. Handle the empty and error cases.",
				"// 4. Name things after what they mean, not how they work.",
			}, "\n"),
		},
	}
}

func explainPayload(topic string) types.Payload {
	return types.Payload{
		Intent: types.IntentExplain,
		Text:   fmt.Sprintf("Offline mode: a structured way to break down %s.", topic),
		Concepts: []types.Concept{
			{Term: "Definition", Definition: "State the idea in one sentence before adding detail."},
			{Term: "Mechanism", Definition: "Walk through how it works step by step with a small example."},
			{Term: "Boundaries", Definition: "Name the cases where it does not apply or breaks down."},
			{Term: "Connection", Definition: "Relate it to one thing you already understand well."},
		},
	}
}

func comparePayload() types.Payload {
	return types.Payload{
		Intent: types.IntentCompare,
		Text:   "Offline mode: use this frame to compare the options yourself.",
		Comparison: &types.Comparison{
			Headers: []string{"Criterion", "Option A", "Option B"},
			Rows: [][]string{
				{"Core strength", "Fill in the main advantage", "Fill in the main advantage"},
				{"Main cost", "What do you give up?", "What do you give up?"},
				{"Best when", "Describe the ideal situation", "Describe the ideal situation"},
			},
		},
	}
}

func quizPayload(topic string) types.Payload {
	return types.Payload{
		Intent: types.IntentQuiz,
		Text:   fmt.Sprintf("Offline mode: no generated quiz available, so rate your own readiness on %s.", topic),
		Quiz: []types.ObjectiveQuestion{
			{
				Question: "Could you explain the core idea to someone else right now?",
				Options:  []string{"Yes, clearly", "Mostly", "Only roughly", "Not yet"},
				Correct:  0,
			},
			{
				Question: "Could you apply it to a new example without looking anything up?",
				Options:  []string{"Yes", "With minor checks", "With heavy reference", "No"},
				Correct:  0,
			},
			{
				Question: "Do you know where it breaks down or does not apply?",
				Options:  []string{"Yes, with examples", "Some cases", "Vaguely", "No"},
				Correct:  0,
			},
		},
	}
}

func generalPayload(topic string) types.Payload {
	return types.Payload{
		Intent: types.IntentGeneral,
		Text: fmt.Sprintf("Offline mode: I can still help with %s. Ask for code, an explanation, a comparison, or a quiz and I will give you a structured starting point.",
			topic),
	}
}
