package conversation

import "strings"

const (
	instructionHeader = "--- System Instruction ---\n"
	instructionFooter = "\n--- End System Instruction ---\n\n"
)

// FormatSystemInstruction trims a system instruction and wraps it in
// its prompt delimiters. Blank instructions format to the empty string
// so the result can always be concatenated in front of other segments.
func FormatSystemInstruction(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return instructionHeader + s + instructionFooter
}
