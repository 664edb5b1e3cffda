package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/serenibot/serenibot/backend/internal/config"
	"github.com/serenibot/serenibot/backend/internal/model/chat"
)

const systemPrompt = "You are SereniBot, a caring companion for personal wellbeing. " +
	"Listen closely, respond with warmth and without judgement, and keep answers " +
	"concise and practical. You are not a medical professional and you do not " +
	"diagnose; when someone appears to be in crisis, gently encourage them to " +
	"seek professional support."

// Service wraps the chat model behind a compiled eino chain.
type Service struct {
	chatModel model.ChatModel
	cfg       config.ChatConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
	log       *logrus.Logger
}

// NewService builds the chat chain: system prompt, history placeholder,
// current user message, then the model.
func NewService(ctx context.Context, cfg config.ChatConfig, log *logrus.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
		log:       log,
	}, nil
}

// StreamingEnabled indicates whether SSE streaming output is on.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Reply generates the next assistant message for a conversation. The
// turn log is windowed to the configured history limit (oldest turns
// dropped first) before it reaches the model.
func (s *Service) Reply(ctx context.Context, turns []chat.Turn, userText string) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(turns, userText))
	if err != nil {
		return "", fmt.Errorf("chat model call failed: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"history": len(turns),
		"length":  len(response.Content),
	}).Debug("generated reply")
	return response.Content, nil
}

// RespondOnce answers a single message with an ephemeral one-turn
// history. Used by the stateless facade; nothing is recorded.
func (s *Service) RespondOnce(ctx context.Context, message string) (string, error) {
	return s.Reply(ctx, nil, message)
}

// StreamReply streams the reply chunks through the same chain.
func (s *Service) StreamReply(ctx context.Context, turns []chat.Turn, userText string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(turns, userText))
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat chain output: %w", err)
	}

	return stream, nil
}

// GetChatModel exposes the underlying model for reuse, e.g. by the
// LLM-backed sentiment classifier.
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

func (s *Service) buildChainInput(turns []chat.Turn, userText string) map[string]any {
	// Callers append the user turn before asking for a reply; drop it
	// from the history so the message is not presented to the model
	// twice.
	if n := len(turns); n > 0 && turns[n-1].Role == chat.RoleUser && turns[n-1].Content == userText {
		turns = turns[:n-1]
	}

	return map[string]any{
		"system":  systemPrompt,
		"history": s.buildHistoryMessages(turns),
		"query":   userText,
	}
}

func (s *Service) buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	limit := s.cfg.HistoryLimit
	if limit < 1 {
		limit = 1
	}
	startIdx := 0
	if len(turns) > limit {
		startIdx = len(turns) - limit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return history
}
