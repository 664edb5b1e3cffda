package sentiment

// Label is the polarity class reported by a classifier.
type Label string

const (
	Positive Label = "POSITIVE"
	Negative Label = "NEGATIVE"
	Neutral  Label = "NEUTRAL"
)

// Result is a single classification verdict. The score lives in [0,1]
// and is calibrated by the upstream classifier, not by this service.
// Results are derived per evaluated text and never persisted.
type Result struct {
	Label Label   `json:"label"`
	Score float64 `json:"score"`
}
