package session

import "strings"

const historyHeader = "Previous conversation:"

// BuildPrompt composes the outbound prompt. Without instructions the user
// input is sent verbatim; otherwise the instructions are followed by the
// trailing PromptWindow turns of history and the labelled user input.
func BuildPrompt(userInput, instructions string, history []Turn) string {
	if instructions == "" {
		return userInput
	}

	if len(history) > PromptWindow {
		history = history[len(history)-PromptWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, turn.Role.Label()+": "+turn.Text)
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(historyHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
	b.WriteString(RoleUser.Label())
	b.WriteString(": ")
	b.WriteString(userInput)
	return b.String()
}
