package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/serenibot/serenibot/backend/internal/config"
	"github.com/serenibot/serenibot/backend/internal/handler"
	streamhandler "github.com/serenibot/serenibot/backend/internal/handler/stream"
	"github.com/serenibot/serenibot/backend/internal/logger"
	speechmodel "github.com/serenibot/serenibot/backend/internal/model/speech"
	"github.com/serenibot/serenibot/backend/internal/service/ai"
	chatservice "github.com/serenibot/serenibot/backend/internal/service/chat"
	"github.com/serenibot/serenibot/backend/internal/service/conversation"
	"github.com/serenibot/serenibot/backend/internal/service/insight"
	"github.com/serenibot/serenibot/backend/internal/service/sentiment"
	speechservice "github.com/serenibot/serenibot/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New()

	if err := godotenv.Load(); err != nil {
		log.WithError(err).Warn("no .env file loaded, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	store := chatservice.NewService(cfg.Greeting)

	aiService, err := ai.NewService(ctx, cfg.Chat, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize chat model service")
	}
	log.WithFields(logrus.Fields{
		"model":    cfg.Chat.Model,
		"base_url": cfg.Chat.BaseURL,
	}).Info("chat model service initialized")

	classifier, err := sentiment.New(ctx, cfg.Sentiment, aiService.GetChatModel(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize sentiment classifier")
	}

	insights := insight.NewGenerator(classifier, cfg.Sentiment.DistressThreshold)
	orch := conversation.NewOrchestrator(store, aiService, insights, cfg.Chat.Timeout(), log)

	deps := handler.Deps{
		Store:    store,
		Orch:     orch,
		Facade:   aiService,
		Streamer: streamhandler.New(aiService, store, orch, log),
		Log:      log,
	}

	if cfg.Speech.Enabled {
		speechCfg := &speechmodel.Config{
			ASRBaseURL: cfg.Speech.ASRBaseURL,
			ASRKey:     cfg.Speech.ASRKey,
			TTSBaseURL: cfg.Speech.TTSBaseURL,
			Language:   cfg.Speech.Language,
			TTSSpeed:   cfg.Speech.TTSSpeed,
			Timeout:    cfg.Speech.Timeout,
		}
		deps.SpeechSvc = speechservice.NewService(speechCfg)
		log.Info("speech service initialized")
	} else {
		log.Info("speech backends not configured, speech routes disabled")
	}

	router := handler.NewRouter(deps)

	startServer(ctx, cfg.Server, router, log)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logrus.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithField("addr", serverCfg.Addr).Info("serenibot backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
