package sentiment

import (
	"strings"

	model "github.com/serenibot/serenibot/backend/internal/model/sentiment"
)

// Analyze scores a text with the keyword lexicon and returns a polarity
// verdict. It is the offline stand-in for a hosted classifier: coarse,
// but it needs no network and no credentials.
func Analyze(text string) model.Result {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return model.Result{Label: model.Neutral, Score: 0.5}
	}

	scores := make(map[model.Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	for _, word := range intensifiers {
		if strings.Contains(normalized, word) {
			for label := range scores {
				scores[label] += 2
			}
			break
		}
	}

	// Exclamation marks amplify whatever polarity is already present.
	if exclamations := strings.Count(text, "!"); exclamations > 0 {
		for label := range scores {
			scores[label] += exclamations
		}
	}

	bestLabel := model.Neutral
	bestScore := 0
	for label, s := range scores {
		if s > bestScore {
			bestScore = s
			bestLabel = label
		}
	}

	if bestScore == 0 {
		return model.Result{Label: model.Neutral, Score: 0.5}
	}

	return model.Result{Label: bestLabel, Score: confidence(bestScore)}
}

// confidence maps a raw keyword score onto [0.6, 0.99].
func confidence(score int) float64 {
	c := 0.6 + float64(score)*0.04
	if c > 0.99 {
		c = 0.99
	}
	return c
}

var keywordBuckets = map[model.Label][]string{
	model.Positive: {
		"happy", "glad", "great", "good", "wonderful", "amazing", "awesome",
		"excited", "grateful", "thankful", "thanks", "love", "loved", "enjoy",
		"proud", "calm", "relaxed", "better", "relieved", "hopeful", "optimistic",
		"fantastic", "delighted", "content", "peaceful", "confident",
	},
	model.Negative: {
		"sad", "unhappy", "depressed", "depressing", "anxious", "anxiety",
		"worried", "worry", "afraid", "scared", "fear", "hopeless", "worthless",
		"lonely", "alone", "miserable", "awful", "terrible", "horrible", "cry",
		"crying", "angry", "furious", "hate", "hurt", "pain", "tired of",
		"exhausted", "overwhelmed", "stressed", "give up", "can't cope",
		"empty", "numb", "despair",
	},
}

var intensifiers = []string{
	"very", "really", "so ", "extremely", "completely", "totally", "always",
}
