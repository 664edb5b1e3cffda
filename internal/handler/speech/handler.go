package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	speechmodel "github.com/serenibot/serenibot/backend/internal/model/speech"
	"github.com/serenibot/serenibot/backend/internal/service/conversation"
	speechsvc "github.com/serenibot/serenibot/backend/internal/service/speech"
	"github.com/serenibot/serenibot/backend/pkg/utils"
)

// UnintelligibleMessage is the fixed user-facing string for audio the
// recognizer could not make sense of. It is an answer, not an error.
const UnintelligibleMessage = "Sorry, I could not understand the audio."

// SpeechService abstracts the speech business logic for testing.
type SpeechService interface {
	TranscribeBuffer(ctx context.Context, sessionID string, audioData []byte, format, language string) (*speechmodel.ASRResponse, error)
	SynthesizeToBuffer(ctx context.Context, sessionID, text, language string) (*speechmodel.TTSResponse, error)
	CanRecognize() bool
	CanSynthesize() bool
}

// Handler serves the speech endpoints.
type Handler struct {
	speechSvc SpeechService
	orch      *conversation.Orchestrator
	log       *logrus.Logger
}

// New creates the speech handler.
func New(speechSvc SpeechService, orch *conversation.Orchestrator, log *logrus.Logger) *Handler {
	return &Handler{speechSvc: speechSvc, orch: orch, log: log}
}

// RegisterRoutes mounts the speech routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/transcribe", h.handleTranscribe)
		speechRouter.Post("/synthesize", h.handleSynthesize)

		if h.speechSvc.CanRecognize() && h.orch != nil {
			wsHandler := NewWebSocketHandler(h.speechSvc, h.orch, h.log)
			speechRouter.Get("/ws/{sessionID}", wsHandler.HandleVoiceSession)
		} else {
			speechRouter.Get("/ws/{sessionID}", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusNotImplemented, "voice websocket not available")
			})
		}
	})
}

type transcribeResponse struct {
	SessionID  string  `json:"sessionId,omitempty"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Recognized bool    `json:"recognized"`
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	sessionID := r.FormValue("sessionId")
	language := r.FormValue("language")
	format := inferAudioFormat(header.Filename)

	resp, err := h.speechSvc.TranscribeBuffer(r.Context(), sessionID, audio, format, language)
	if err != nil {
		h.respondTranscribeError(w, sessionID, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcribeResponse{
		SessionID:  resp.SessionID,
		Text:       resp.Text,
		Confidence: resp.Confidence,
		Recognized: true,
	})
}

func (h *Handler) respondTranscribeError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, speechsvc.ErrUnintelligible):
		// Mirror of the voice-input contract: unintelligible audio is
		// answered with the fixed string, not treated as a failure.
		utils.RespondJSON(w, http.StatusOK, transcribeResponse{
			SessionID:  sessionID,
			Text:       UnintelligibleMessage,
			Recognized: false,
		})
	case errors.Is(err, speechsvc.ErrASRNotConfigured):
		utils.RespondError(w, http.StatusNotImplemented, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Text      string `json:"text"`
		Language  string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.speechSvc.SynthesizeToBuffer(r.Context(), payload.SessionID, payload.Text, payload.Language)
	if err != nil {
		if errors.Is(err, speechsvc.ErrTTSNotConfigured) {
			utils.RespondError(w, http.StatusNotImplemented, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		h.log.WithError(err).Warn("failed to write audio response")
	}
}

func inferAudioFormat(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return "wav"
	}
	return ext
}
