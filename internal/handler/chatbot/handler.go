package chatbot

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/serenibot/serenibot/backend/pkg/utils"
)

// Responder answers a single message with no session context.
type Responder interface {
	RespondOnce(ctx context.Context, message string) (string, error)
}

// Handler is the stateless facade for programmatic callers. Each call
// builds an ephemeral one-turn history; nothing is shared with the
// session-scoped conversation store and nothing survives the call.
// The statelessness is intentional, not an accident of implementation.
type Handler struct {
	responder Responder
}

// New creates the facade handler.
func New(responder Responder) *Handler {
	return &Handler{responder: responder}
}

// RegisterRoutes mounts the facade endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chatbot/message", h.handleMessage)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, `Missing "message" in request body`)
		return
	}

	rawMessage, ok := payload["message"]
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, `Missing "message" in request body`)
		return
	}

	var message string
	if err := json.Unmarshal(rawMessage, &message); err != nil || message == "" {
		utils.RespondError(w, http.StatusBadRequest, `Missing "message" in request body`)
		return
	}

	response, err := h.responder.RespondOnce(r.Context(), message)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"response": response})
}
