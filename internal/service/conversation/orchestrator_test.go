package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	chatmodel "github.com/serenibot/serenibot/backend/internal/model/chat"
	sentimentmodel "github.com/serenibot/serenibot/backend/internal/model/sentiment"
	chatservice "github.com/serenibot/serenibot/backend/internal/service/chat"
	"github.com/serenibot/serenibot/backend/internal/service/insight"
)

type stubResponder struct {
	reply string
	err   error
	seen  []string
}

func (s *stubResponder) Reply(_ context.Context, _ []chatmodel.Turn, userText string) (string, error) {
	s.seen = append(s.seen, userText)
	return s.reply, s.err
}

type stubInsights struct {
	got []string
	err error
}

func (s *stubInsights) Generate(_ context.Context, text string) (insight.Insight, error) {
	s.got = append(s.got, text)
	if s.err != nil {
		return insight.Insight{}, s.err
	}
	return insight.Insight{
		Advisory:  insight.StableAdvisory,
		Sentiment: sentimentmodel.Result{Label: sentimentmodel.Positive, Score: 0.9},
	}, nil
}

func newTestOrchestrator(responder Responder, insights InsightSource) (*Orchestrator, *chatservice.Service, string) {
	store := chatservice.NewService("")
	session, _ := store.CreateSession(context.Background())

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return NewOrchestrator(store, responder, insights, time.Minute, log), store, session.ID
}

func TestHandleTurnAppendsBothTurns(t *testing.T) {
	responder := &stubResponder{reply: "hi there"}
	insights := &stubInsights{}
	orch, store, sessionID := newTestOrchestrator(responder, insights)

	result, err := orch.HandleTurn(context.Background(), sessionID, "hello")
	if err != nil {
		t.Fatalf("HandleTurn err: %v", err)
	}
	if result.Reply != "hi there" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}

	history, _ := store.History(context.Background(), sessionID)
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Role != chatmodel.RoleUser || history[1].Role != chatmodel.RoleAssistant {
		t.Fatalf("unexpected roles: %s then %s", history[0].Role, history[1].Role)
	}
}

func TestHandleTurnInsightReflectsUserInput(t *testing.T) {
	insights := &stubInsights{}
	orch, _, sessionID := newTestOrchestrator(&stubResponder{reply: "a reply"}, insights)

	if _, err := orch.HandleTurn(context.Background(), sessionID, "I am worried"); err != nil {
		t.Fatalf("HandleTurn err: %v", err)
	}

	if len(insights.got) != 1 || insights.got[0] != "I am worried" {
		t.Fatalf("insight should observe the user input, got %v", insights.got)
	}
}

func TestHandleTurnNotIdempotent(t *testing.T) {
	orch, store, sessionID := newTestOrchestrator(&stubResponder{reply: "ok"}, &stubInsights{})
	ctx := context.Background()

	orch.HandleTurn(ctx, sessionID, "same input")
	orch.HandleTurn(ctx, sessionID, "same input")

	history, _ := store.History(ctx, sessionID)
	if len(history) != 4 {
		t.Fatalf("two identical turns must append 4 turns, got %d", len(history))
	}
}

func TestHandleTurnModelFailureKeepsUserTurn(t *testing.T) {
	responder := &stubResponder{err: errors.New("model unavailable")}
	orch, store, sessionID := newTestOrchestrator(responder, &stubInsights{})

	if _, err := orch.HandleTurn(context.Background(), sessionID, "hello?"); err == nil {
		t.Fatal("expected model error to propagate")
	}

	history, _ := store.History(context.Background(), sessionID)
	if len(history) != 1 {
		t.Fatalf("user turn must survive the failure, got %d turns", len(history))
	}
	if history[0].Role != chatmodel.RoleUser || history[0].Content != "hello?" {
		t.Fatalf("unexpected surviving turn: %+v", history[0])
	}
}

func TestHandleTurnInsightFailurePropagates(t *testing.T) {
	insights := &stubInsights{err: errors.New("classifier down")}
	orch, store, sessionID := newTestOrchestrator(&stubResponder{reply: "fine"}, insights)

	if _, err := orch.HandleTurn(context.Background(), sessionID, "hello"); err == nil {
		t.Fatal("expected insight error to propagate")
	}

	// Both turns were already appended before the insight step ran.
	history, _ := store.History(context.Background(), sessionID)
	if len(history) != 2 {
		t.Fatalf("expected 2 turns despite insight failure, got %d", len(history))
	}
}

func TestHandleTurnUnknownSession(t *testing.T) {
	orch, _, _ := newTestOrchestrator(&stubResponder{reply: "x"}, &stubInsights{})
	if _, err := orch.HandleTurn(context.Background(), "missing", "hello"); !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestHandleToolRoutesCannedPrompt(t *testing.T) {
	responder := &stubResponder{reply: "You are doing great."}
	orch, store, sessionID := newTestOrchestrator(responder, &stubInsights{})

	if _, err := orch.HandleTool(context.Background(), sessionID, "affirmation"); err != nil {
		t.Fatalf("HandleTool err: %v", err)
	}

	history, _ := store.History(context.Background(), sessionID)
	if history[0].Content != "Provide a positive affirmation." {
		t.Fatalf("canned prompt not recorded as user turn: %q", history[0].Content)
	}

	if _, err := orch.HandleTool(context.Background(), sessionID, "horoscope"); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}
