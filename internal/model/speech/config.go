package speech

// Config holds endpoints and defaults for the recognition and
// synthesis backends. Both are plain request/response HTTP services:
// audio in, text out for ASR; text in, audio out for TTS.
type Config struct {
	ASRBaseURL string `json:"asrBaseUrl"`
	ASRKey     string `json:"asrKey,omitempty"`
	Language   string `json:"language"`

	TTSBaseURL string  `json:"ttsBaseUrl"`
	TTSSpeed   float32 `json:"ttsSpeed"`

	Timeout int `json:"timeout"` // seconds
}
