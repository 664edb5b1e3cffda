package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	speechmodel "github.com/serenibot/serenibot/backend/internal/model/speech"
)

// RecognizerClient posts raw audio to a speech-recognition HTTP
// endpoint and reads back the best transcript. The response follows
// the common recognize shape: newline-separated JSON objects, each
// holding result -> alternative -> {transcript, confidence}.
type RecognizerClient struct {
	config *speechmodel.Config
	client *resty.Client
}

// NewRecognizerClient builds the ASR client.
func NewRecognizerClient(config *speechmodel.Config) *RecognizerClient {
	client := resty.New().
		SetBaseURL(config.ASRBaseURL).
		SetTimeout(time.Duration(config.Timeout) * time.Second)

	return &RecognizerClient{config: config, client: client}
}

type recognizeLine struct {
	Result []struct {
		Alternative []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternative"`
		Final bool `json:"final"`
	} `json:"result"`
}

// Recognize transcribes one utterance. An empty recognition result
// maps to ErrUnintelligible rather than a generic failure so callers
// can answer with the fixed user-facing string.
func (c *RecognizerClient) Recognize(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio payload: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrUnintelligible
	}

	language := req.Language
	if language == "" {
		language = c.config.Language
	}

	request := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentTypeForFormat(req.Format)).
		SetQueryParam("lang", language).
		SetBody(audio)
	if c.config.ASRKey != "" {
		request.SetQueryParam("key", c.config.ASRKey)
	}

	resp, err := request.Post("")
	if err != nil {
		return nil, fmt.Errorf("speech recognition call failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("speech recognition service returned %s", resp.Status())
	}

	transcript, confidence, ok := parseRecognition(resp.Body())
	if !ok {
		return nil, ErrUnintelligible
	}

	return &speechmodel.ASRResponse{
		SessionID:  req.SessionID,
		Text:       transcript,
		Confidence: confidence,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// parseRecognition scans the response lines for the first non-empty
// result and returns its top alternative.
func parseRecognition(body []byte) (string, float64, bool) {
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var parsed recognizeLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			continue
		}

		for _, result := range parsed.Result {
			if len(result.Alternative) == 0 {
				continue
			}
			best := result.Alternative[0]
			if strings.TrimSpace(best.Transcript) == "" {
				continue
			}
			return best.Transcript, best.Confidence, true
		}
	}
	return "", 0, false
}

func contentTypeForFormat(format string) string {
	switch strings.ToLower(format) {
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/x-flac"
	case "ogg", "opus":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}
