package speech

import (
	"bytes"
	"context"
	"errors"

	speechmodel "github.com/serenibot/serenibot/backend/internal/model/speech"
)

var (
	// ErrUnintelligible means the recognizer produced no transcript.
	// Handlers surface this as a fixed user-facing message, not as an
	// internal failure.
	ErrUnintelligible = errors.New("could not understand the audio")

	ErrASRNotConfigured = errors.New("speech recognition backend not configured")
	ErrTTSNotConfigured = errors.New("speech synthesis backend not configured")
)

// Service bundles the recognition and synthesis clients. Either side
// may be absent when its backend is unconfigured.
type Service struct {
	config     *speechmodel.Config
	recognizer *RecognizerClient
	synth      *SynthesizerClient
}

// NewService builds clients for whichever backends are configured.
func NewService(config *speechmodel.Config) *Service {
	svc := &Service{config: config}
	if config.ASRBaseURL != "" {
		svc.recognizer = NewRecognizerClient(config)
	}
	if config.TTSBaseURL != "" {
		svc.synth = NewSynthesizerClient(config)
	}
	return svc
}

// TranscribeAudio converts audio to text.
func (s *Service) TranscribeAudio(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	if s.recognizer == nil {
		return nil, ErrASRNotConfigured
	}
	return s.recognizer.Recognize(ctx, req)
}

// SynthesizeSpeech converts text to audio bytes.
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if s.synth == nil {
		return nil, ErrTTSNotConfigured
	}
	return s.synth.Synthesize(ctx, req)
}

// TranscribeBuffer recognizes audio held in a byte slice.
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audioData []byte, format, language string) (*speechmodel.ASRResponse, error) {
	req := &speechmodel.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audioData),
		Format:    format,
		Language:  language,
	}
	return s.TranscribeAudio(ctx, req)
}

// SynthesizeToBuffer synthesizes text and returns the audio bytes.
func (s *Service) SynthesizeToBuffer(ctx context.Context, sessionID, text, language string) (*speechmodel.TTSResponse, error) {
	req := &speechmodel.TTSRequest{
		SessionID: sessionID,
		Text:      text,
		Speed:     s.config.TTSSpeed,
		Language:  language,
	}
	return s.SynthesizeSpeech(ctx, req)
}

// CanRecognize reports whether an ASR backend is available.
func (s *Service) CanRecognize() bool { return s != nil && s.recognizer != nil }

// CanSynthesize reports whether a TTS backend is available.
func (s *Service) CanSynthesize() bool { return s != nil && s.synth != nil }
