package sentiment

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/sirupsen/logrus"

	analysis "github.com/serenibot/serenibot/backend/internal/analysis/sentiment"
	"github.com/serenibot/serenibot/backend/internal/config"
	sentimentmodel "github.com/serenibot/serenibot/backend/internal/model/sentiment"
)

// Classifier labels a text with a polarity and a confidence score.
// Implementations do not retry; a failed call surfaces to the caller.
type Classifier interface {
	Classify(ctx context.Context, text string) (sentimentmodel.Result, error)
}

// New selects the classifier backend once at startup: a hosted HTTP
// classifier when configured, else the chat model when enabled, else
// the offline lexicon. The choice is fixed for the process lifetime;
// there is no per-call fallback chain.
func New(ctx context.Context, cfg config.SentimentConfig, chatModel model.ChatModel, log *logrus.Logger) (Classifier, error) {
	if cfg.BaseURL != "" {
		log.WithField("backend", "http").Info("sentiment classifier configured")
		return NewHTTPClassifier(cfg), nil
	}

	if cfg.LLMEnabled && chatModel != nil {
		classifier, err := NewLLMClassifier(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		log.WithField("backend", "llm").Info("sentiment classifier configured")
		return classifier, nil
	}

	log.WithField("backend", "lexicon").Info("sentiment classifier configured")
	return LexiconClassifier{}, nil
}

// LexiconClassifier scores text with the keyword analyzer. It needs no
// network and is the default backend.
type LexiconClassifier struct{}

func (LexiconClassifier) Classify(_ context.Context, text string) (sentimentmodel.Result, error) {
	return analysis.Analyze(text), nil
}
