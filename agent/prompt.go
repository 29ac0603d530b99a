package agent

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hupe1980/chatagent/tool"
)

// DefaultSystemPrompt is a ReAct prompt teaching the model the
// Thought / Action / Action Input / Final Answer protocol.
const DefaultSystemPrompt = `You are a helpful assistant having a conversation with a human. Today is {{.Today}}.

What you know about the human:
{{default "nothing yet" .UserProfile}}

You can use the following tools:
{{.ToolDescriptions}}

Answer using this format:

Thought: think about what to do next
Action: the tool to use, one of [{{.ToolNames}}]
Action Input: the input for the tool
Observation: the result of the tool (provided to you, never write it yourself)
... (Thought/Action/Action Input/Observation can repeat)
Thought: I know the answer
Final Answer: the answer for the human

If no tool is needed, reply with a Thought followed by a Final Answer.`

// PromptData holds the values available to a system prompt template.
type PromptData struct {
	Today            string
	UserProfile      string
	ToolDescriptions string
	ToolNames        string
}

// NewPromptData fills the tool fields from registry and stamps today's date.
func NewPromptData(registry *tool.Registry, userProfile string) PromptData {
	data := PromptData{
		Today:       time.Now().Format("2006-01-02"),
		UserProfile: strings.TrimSpace(userProfile),
	}
	if registry != nil {
		data.ToolDescriptions = registry.Describe()
		data.ToolNames = strings.Join(registry.Names(), ", ")
	}
	return data
}

// promptFuncs are the functions available to prompt templates.
var promptFuncs = template.FuncMap{
	// default returns def when s is empty
	"default": func(def, s string) string {
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	},
}

// RenderSystemPrompt executes tmpl (text/template syntax) with data. An
// empty tmpl renders DefaultSystemPrompt. Referencing a field PromptData
// does not have is an error.
func RenderSystemPrompt(tmpl string, data PromptData) (string, error) {
	if tmpl == "" {
		tmpl = DefaultSystemPrompt
	}
	t, err := template.New("system").Funcs(promptFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse system prompt: %w", err)
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return b.String(), nil
}
