package conversation

import (
	"errors"
	"sort"
)

var ErrUnknownTool = errors.New("unknown tool")

// cannedPrompts are the fixed sidebar prompts. Each one is an ordinary
// user turn as far as the pipeline is concerned.
var cannedPrompts = map[string]string{
	"affirmation": "Provide a positive affirmation.",
	"meditation":  "Provide a 5-minute guided meditation script.",
	"selfcare":    "Provide self-care tips.",
	"cbt":         "Provide a CBT exercise to manage negative thoughts.",
}

// PromptForTool resolves a tool name to its canned prompt.
func PromptForTool(name string) (string, bool) {
	promptText, ok := cannedPrompts[name]
	return promptText, ok
}

// Tools lists the available tool names in stable order.
func Tools() []string {
	names := make([]string, 0, len(cannedPrompts))
	for name := range cannedPrompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
