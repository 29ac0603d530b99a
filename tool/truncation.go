package tool

import "fmt"

// TruncationMode specifies how an observation is shortened.
type TruncationMode string

const (
	// TruncateHeadTail keeps the beginning and the end.
	TruncateHeadTail TruncationMode = "head_tail"
	// TruncateTail keeps the end.
	TruncateTail TruncationMode = "tail"
)

// Truncate shortens output to roughly maxChars characters and tells the model
// what was removed. maxChars <= 0 disables truncation.
func Truncate(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[Tool output was truncated. First %d characters were removed.]\n\n", removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[Tool output was truncated. %d characters were removed from the middle.]\n\n", removed) +
			output[len(output)-half:]
	}
}
