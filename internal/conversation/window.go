package conversation

import (
	"strings"
)

// DefaultHistoryWindow bounds how many prior turns flow into an enriched
// query when configuration does not say otherwise.
const DefaultHistoryWindow = 6

const currentQuestionPrefix = "Current question: "

// SelectWindow returns the last n turns of history, order preserved.
// Both roles count toward the window; an odd n can split a question/answer
// pair and that is accepted. n <= 0 or empty history yields nil.
func SelectWindow(history []Turn, n int) []Turn {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// BuildEnrichedQuery serializes the selected history plus the new question
// into the single prompt string handed to retrieval. Each turn renders as
// "<Role>: <content>" oldest first, followed by a separator line and
// "Current question: <q>". With no history the result is exactly the bare
// "Current question: <q>" line.
func BuildEnrichedQuery(selected []Turn, question string) string {
	if len(selected) == 0 {
		return currentQuestionPrefix + question
	}
	var b strings.Builder
	for _, t := range selected {
		b.WriteString(roleLabel(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	b.WriteString(currentQuestionPrefix)
	b.WriteString(question)
	return b.String()
}

func roleLabel(role string) string {
	switch role {
	case RoleAssistant:
		return "Assistant"
	case RoleUser:
		return "User"
	default:
		if role == "" {
			return "User"
		}
		return strings.ToUpper(role[:1]) + role[1:]
	}
}
