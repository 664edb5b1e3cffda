package speech

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	speechmodel "github.com/serenibot/serenibot/backend/internal/model/speech"
)

// SynthesizerClient fetches MP3 audio from a translate-style TTS
// endpoint: text and language in the query string, audio bytes out.
type SynthesizerClient struct {
	config *speechmodel.Config
	client *resty.Client
}

// NewSynthesizerClient builds the TTS client.
func NewSynthesizerClient(config *speechmodel.Config) *SynthesizerClient {
	client := resty.New().
		SetBaseURL(config.TTSBaseURL).
		SetTimeout(time.Duration(config.Timeout) * time.Second)

	return &SynthesizerClient{config: config, client: client}
}

// Synthesize renders one text to MP3 bytes.
func (c *SynthesizerClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("synthesis text is empty")
	}

	language := req.Language
	if language == "" {
		language = c.config.Language
	}
	speed := req.Speed
	if speed <= 0 {
		speed = c.config.TTSSpeed
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("q", text).
		SetQueryParam("tl", language).
		SetQueryParam("speed", strconv.FormatFloat(float64(speed), 'f', 2, 32)).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("speech synthesis call failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("speech synthesis service returned %s", resp.Status())
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("speech synthesis service returned no audio")
	}

	return &speechmodel.TTSResponse{
		SessionID: req.SessionID,
		AudioData: resp.Body(),
		Format:    "mp3",
		CreatedAt: time.Now().UTC(),
	}, nil
}
