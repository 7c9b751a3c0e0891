package question

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are conducting a spoken phone interview. " +
	"Ask exactly one short, clear question. Do not number it, do not add " +
	"commentary, and do not repeat earlier questions."

// BuildPrompt renders the interview topic and the full prior exchange
// history, in order, into the prompt for the next question.
func BuildPrompt(topic string, history []Exchange) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interview topic: %s\n", topic)
	if len(history) == 0 {
		b.WriteString("This is the first question of the interview.\n")
	} else {
		b.WriteString("Conversation so far:\n")
		for _, ex := range history {
			fmt.Fprintf(&b, "Interviewer: %s\n", ex.Question)
			fmt.Fprintf(&b, "Candidate: %s\n", ex.Answer)
		}
	}
	b.WriteString("Next question:")
	return b.String()
}
