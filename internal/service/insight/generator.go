package insight

import (
	"context"
	"fmt"

	sentimentmodel "github.com/serenibot/serenibot/backend/internal/model/sentiment"
	"github.com/serenibot/serenibot/backend/internal/service/sentiment"
)

// The two advisories form a closed set. This is a decision rule, not a
// classifier; precision is bounded by the upstream sentiment backend.
const (
	DistressAdvisory = "Your response suggests you may be feeling distressed. Consider seeking professional support."
	StableAdvisory   = "Your response appears stable. Keep focusing on your well-being!"
)

// Insight is the advisory derived from one user input. It is computed
// per turn and never persisted.
type Insight struct {
	Advisory  string                `json:"advisory"`
	Distress  bool                  `json:"distress"`
	Sentiment sentimentmodel.Result `json:"sentiment"`
}

// Generator maps sentiment results onto the advisory set.
type Generator struct {
	classifier sentiment.Classifier
	threshold  float64
}

// NewGenerator wires the decision rule to a classifier. The threshold
// is a policy constant; 0.85 unless configuration overrides it.
func NewGenerator(classifier sentiment.Classifier, threshold float64) *Generator {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &Generator{classifier: classifier, threshold: threshold}
}

// Generate classifies the text and selects the advisory. The distress
// advisory requires a NEGATIVE label with a score strictly above the
// threshold; every other (label, score) pair is considered stable.
// Classifier failures propagate unretried.
func (g *Generator) Generate(ctx context.Context, text string) (Insight, error) {
	result, err := g.classifier.Classify(ctx, text)
	if err != nil {
		return Insight{}, fmt.Errorf("sentiment analysis failed: %w", err)
	}

	if result.Label == sentimentmodel.Negative && result.Score > g.threshold {
		return Insight{Advisory: DistressAdvisory, Distress: true, Sentiment: result}, nil
	}
	return Insight{Advisory: StableAdvisory, Distress: false, Sentiment: result}, nil
}
