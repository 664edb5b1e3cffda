package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	sentimentmodel "github.com/serenibot/serenibot/backend/internal/model/sentiment"
)

const llmSystemPrompt = "You are a sentiment classifier. Read the user text and decide its " +
	"overall polarity. Respond with a single JSON object and nothing else, with fields: " +
	"label (one of POSITIVE, NEGATIVE, NEUTRAL) and score (a number between 0 and 1 " +
	"expressing your confidence in the label)."

const llmUserPrompt = "Text to classify:\n{text}\n\nReturn the JSON object."

// LLMClassifier reuses the chat model as a zero-shot sentiment
// classifier through a dedicated eino chain.
type LLMClassifier struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewLLMClassifier compiles the classification chain.
func NewLLMClassifier(ctx context.Context, chatModel model.ChatModel) (*LLMClassifier, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(llmSystemPrompt),
		schema.UserMessage(llmUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sentiment classifier chain: %w", err)
	}

	return &LLMClassifier{chain: runnable}, nil
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (sentimentmodel.Result, error) {
	msg, err := c.chain.Invoke(ctx, map[string]any{"text": strings.TrimSpace(text)})
	if err != nil {
		return sentimentmodel.Result{}, fmt.Errorf("sentiment classifier invoke failed: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return sentimentmodel.Result{}, fmt.Errorf("sentiment classifier returned empty output")
	}

	return parseVerdict(msg.Content)
}

// parseVerdict extracts the JSON object from the model output, which
// may be wrapped in prose or code fences.
func parseVerdict(content string) (sentimentmodel.Result, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return sentimentmodel.Result{}, fmt.Errorf("missing json object in classifier output")
	}

	var payload struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return sentimentmodel.Result{}, fmt.Errorf("classifier output parse failed: %w", err)
	}

	label, ok := parseLabel(payload.Label)
	if !ok {
		return sentimentmodel.Result{}, fmt.Errorf("unknown sentiment label %q", payload.Label)
	}

	return sentimentmodel.Result{Label: label, Score: clampScore(payload.Score)}, nil
}

func parseLabel(raw string) (sentimentmodel.Label, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "POSITIVE":
		return sentimentmodel.Positive, true
	case "NEGATIVE":
		return sentimentmodel.Negative, true
	case "NEUTRAL":
		return sentimentmodel.Neutral, true
	default:
		return "", false
	}
}

func clampScore(val float64) float64 {
	if val < 0 {
		return 0
	}
	if val > 1 {
		return 1
	}
	return val
}
