package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	chatHandler "github.com/serenibot/serenibot/backend/internal/handler/chat"
	chatbotHandler "github.com/serenibot/serenibot/backend/internal/handler/chatbot"
	speechHandler "github.com/serenibot/serenibot/backend/internal/handler/speech"
	streamHandler "github.com/serenibot/serenibot/backend/internal/handler/stream"
	middlewarePkg "github.com/serenibot/serenibot/backend/internal/middleware"
	chatService "github.com/serenibot/serenibot/backend/internal/service/chat"
	"github.com/serenibot/serenibot/backend/internal/service/conversation"
	"github.com/serenibot/serenibot/backend/pkg/utils"
)

// Deps carries everything the router mounts. Speech and streaming are
// optional; their routes degrade when the backing service is absent.
type Deps struct {
	Store     *chatService.Service
	Orch      *conversation.Orchestrator
	Facade    chatbotHandler.Responder
	Streamer  *streamHandler.Handler
	SpeechSvc speechHandler.SpeechService
	Log       *logrus.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.RequestLogger(deps.Log))
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		chatHandler.New(deps.Store, deps.Orch).RegisterRoutes(api)

		if deps.Facade != nil {
			chatbotHandler.New(deps.Facade).RegisterRoutes(api)
		} else {
			api.Post("/chatbot/message", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "chat service unavailable")
			})
		}

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if deps.Streamer == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "streaming unavailable")
				return
			}
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := deps.Streamer.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				deps.Log.WithError(err).Warn("stream request failed")
			}
		})

		if deps.SpeechSvc != nil {
			speechHandler.New(deps.SpeechSvc, deps.Orch, deps.Log).RegisterRoutes(api)
		}
	})

	return r
}
