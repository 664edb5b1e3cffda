package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	chatmodel "github.com/serenibot/serenibot/backend/internal/model/chat"
	chatservice "github.com/serenibot/serenibot/backend/internal/service/chat"
	"github.com/serenibot/serenibot/backend/internal/service/conversation"
	"github.com/serenibot/serenibot/backend/pkg/utils"
)

// Responder is the slice of the AI service the stream path needs.
type Responder interface {
	StreamingEnabled() bool
	Reply(ctx context.Context, turns []chatmodel.Turn, userText string) (string, error)
	StreamReply(ctx context.Context, turns []chatmodel.Turn, userText string) (*schema.StreamReader[*schema.Message], error)
}

// Handler streams one conversation turn over Server-Sent Events.
type Handler struct {
	responder Responder
	store     *chatservice.Service
	orch      *conversation.Orchestrator
	log       *logrus.Logger
}

// New creates the stream handler.
func New(responder Responder, store *chatservice.Service, orch *conversation.Orchestrator, log *logrus.Logger) *Handler {
	return &Handler{responder: responder, store: store, orch: orch, log: log}
}

// Response is one SSE frame.
type Response struct {
	Event     string      `json:"event"`
	Content   string      `json:"content,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Insight   interface{} `json:"insight,omitempty"`
	Finished  bool        `json:"finished,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// HandleStreamRequest runs one turn through the orchestrator, emitting
// delta frames as the model produces them. The reply step executes
// inside the orchestrator's per-session lock and deadline, so streamed
// and non-streamed turns on the same session cannot interleave. The
// user turn is not rolled back on failure.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	if _, err := h.store.GetSession(ctx, sessionID); err != nil {
		h.sendError(w, flusher, err.Error())
		return err
	}

	h.send(w, flusher, Response{Event: "start", SessionID: sessionID})

	result, err := h.orch.HandleTurnWith(ctx, sessionID, userMessage, func(replyCtx context.Context, history []chatmodel.Turn) (string, error) {
		return h.dispatchReply(replyCtx, w, flusher, sessionID, history, userMessage)
	})
	if err != nil {
		h.sendError(w, flusher, err.Error())
		return err
	}

	h.send(w, flusher, Response{Event: "insight", SessionID: sessionID, Insight: result.Insight})
	h.send(w, flusher, Response{Event: "end", SessionID: sessionID, Finished: true})

	h.log.WithField("session", sessionID).Debug("stream turn completed")
	return nil
}

func (h *Handler) dispatchReply(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, history []chatmodel.Turn, userMessage string) (string, error) {
	if !h.responder.StreamingEnabled() {
		reply, err := h.responder.Reply(ctx, history, userMessage)
		if err != nil {
			return "", err
		}
		h.send(w, flusher, Response{Event: "message", SessionID: sessionID, Content: reply})
		return reply, nil
	}

	stream, err := h.responder.StreamReply(ctx, history, userMessage)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.send(w, flusher, Response{Event: "delta", SessionID: sessionID, Content: chunk.Content})
		}
	}

	message, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", err
	}

	h.send(w, flusher, Response{Event: "message", SessionID: sessionID, Content: message.Content})
	return message.Content, nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response Response) {
	utils.SendSSEChunk(w, flusher, response)
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, message string) {
	h.send(w, flusher, Response{Event: "error", Error: message})
}
