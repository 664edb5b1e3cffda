package sentiment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/serenibot/serenibot/backend/internal/config"
	sentimentmodel "github.com/serenibot/serenibot/backend/internal/model/sentiment"
)

// HTTPClassifier calls a hosted text-classification endpoint that
// follows the inference-API shape: {"inputs": text} in, a ranked list
// of {"label", "score"} candidates out. The best candidate wins.
type HTTPClassifier struct {
	client *resty.Client
}

// NewHTTPClassifier builds the classifier client with the configured
// endpoint, token and timeout.
func NewHTTPClassifier(cfg config.SentimentConfig) *HTTPClassifier {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout()).
		SetHeader("Content-Type", "application/json")

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &HTTPClassifier{client: client}
}

type classifyRequest struct {
	Inputs string `json:"inputs"`
}

type candidate struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (sentimentmodel.Result, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(classifyRequest{Inputs: text}).
		Post("")
	if err != nil {
		return sentimentmodel.Result{}, fmt.Errorf("sentiment service call failed: %w", err)
	}
	if resp.IsError() {
		return sentimentmodel.Result{}, fmt.Errorf("sentiment service returned %s: %s", resp.Status(), resp.String())
	}

	candidates, err := parseCandidates(resp.Body())
	if err != nil {
		return sentimentmodel.Result{}, fmt.Errorf("sentiment service response malformed: %w", err)
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Score > best.Score {
			best = cand
		}
	}

	label, ok := parseLabel(best.Label)
	if !ok {
		// Unrecognized labels pass through untouched; the decision
		// rule treats them as non-negative.
		label = sentimentmodel.Label(best.Label)
	}

	return sentimentmodel.Result{
		Label: label,
		Score: best.Score,
	}, nil
}

// parseCandidates accepts both the nested ([[{...}]]) and the flat
// ([{...}]) response shapes seen across classifier deployments.
func parseCandidates(body []byte) ([]candidate, error) {
	var nested [][]candidate
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}

	var flat []candidate
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	return nil, fmt.Errorf("no classification candidates in %q", string(body))
}
