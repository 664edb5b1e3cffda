package speech

import "io"

// ASRRequest carries one recognition call.
type ASRRequest struct {
	SessionID string    `json:"sessionId"`
	AudioData io.Reader `json:"-"`
	Format    string    `json:"format"`   // mp3, wav, flac, etc.
	Language  string    `json:"language"` // en-US, etc.
}

// TTSRequest carries one synthesis call.
type TTSRequest struct {
	SessionID string  `json:"sessionId"`
	Text      string  `json:"text"`
	Speed     float32 `json:"speed"` // playback rate multiplier
	Language  string  `json:"language"`
}
