package speech

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/serenibot/serenibot/backend/internal/service/conversation"
	speechsvc "github.com/serenibot/serenibot/backend/internal/service/speech"
)

const (
	writeWait     = 10 * time.Second
	maxAudioFrame = 10 << 20 // 10MB per utterance
	voiceWSFormat = "wav"
)

// WebSocketHandler runs voice conversations: each binary frame is one
// utterance, answered with transcript/reply/insight JSON events and,
// when synthesis is available, a binary audio frame.
type WebSocketHandler struct {
	speechSvc SpeechService
	orch      *conversation.Orchestrator
	log       *logrus.Logger
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates the voice session handler.
func NewWebSocketHandler(speechSvc SpeechService, orch *conversation.Orchestrator, log *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		speechSvc: speechSvc,
		orch:      orch,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type voiceEvent struct {
	Event      string      `json:"event"`
	Text       string      `json:"text,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	Insight    interface{} `json:"insight,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// HandleVoiceSession upgrades the connection and loops over
// utterances until the client disconnects.
func (h *WebSocketHandler) HandleVoiceSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxAudioFrame)
	log := h.log.WithField("session", sessionID)
	log.Info("voice session opened")

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("voice session read failed")
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			h.writeEvent(conn, voiceEvent{Event: "error", Error: "expected binary audio frame"})
			continue
		}

		h.handleUtterance(r, conn, sessionID, payload, log)
	}
}

func (h *WebSocketHandler) handleUtterance(r *http.Request, conn *websocket.Conn, sessionID string, audio []byte, log *logrus.Entry) {
	ctx := r.Context()

	asr, err := h.speechSvc.TranscribeBuffer(ctx, sessionID, audio, voiceWSFormat, "")
	if err != nil {
		if errors.Is(err, speechsvc.ErrUnintelligible) {
			h.writeEvent(conn, voiceEvent{Event: "unintelligible", Text: UnintelligibleMessage})
			return
		}
		h.writeEvent(conn, voiceEvent{Event: "error", Error: err.Error()})
		return
	}

	h.writeEvent(conn, voiceEvent{Event: "transcript", Text: asr.Text, Confidence: asr.Confidence})

	result, err := h.orch.HandleTurn(ctx, sessionID, asr.Text)
	if err != nil {
		h.writeEvent(conn, voiceEvent{Event: "error", Error: err.Error()})
		return
	}

	h.writeEvent(conn, voiceEvent{Event: "reply", Text: result.Reply})
	h.writeEvent(conn, voiceEvent{Event: "insight", Insight: result.Insight})

	if !h.speechSvc.CanSynthesize() {
		return
	}

	tts, err := h.speechSvc.SynthesizeToBuffer(ctx, sessionID, result.Reply, "")
	if err != nil {
		// Audio playback is best effort; the text reply already went out.
		log.WithError(err).Warn("reply synthesis failed")
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, tts.AudioData); err != nil {
		log.WithError(err).Warn("failed to send audio frame")
	}
}

func (h *WebSocketHandler) writeEvent(conn *websocket.Conn, event voiceEvent) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		h.log.WithError(err).Warn("failed to send voice event")
	}
}
