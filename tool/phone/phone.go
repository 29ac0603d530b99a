// Package phone implements a simulated phone dialer tool.
package phone

import (
	"context"
	"strings"
	"unicode"

	"github.com/hupe1980/chatagent/tool"
)

// Tool pretends to call a phone number.
type Tool struct{}

// New creates the dialer.
func New() *Tool { return &Tool{} }

// Factory builds the tool from configuration.
func Factory(tool.Spec, tool.Deps) (tool.Tool, error) { return New(), nil }

// Run "calls" number. The number may contain digits, spaces and + - ( ).
func (t *Tool) Run(_ context.Context, number string) (tool.Result, error) {
	number = strings.TrimSpace(number)
	digits := 0
	for _, r := range number {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(" +-()./", r):
		default:
			return tool.Result{}, tool.NewToolError("phone", "not a phone number: "+number, tool.CodeInput)
		}
	}
	if digits < 3 {
		return tool.Result{}, tool.NewToolError("phone", "not a phone number: "+number, tool.CodeInput)
	}
	return tool.Result{Text: "Called " + number}, nil
}
