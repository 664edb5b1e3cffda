package chat_test

import (
	"context"
	"strings"
	"testing"

	model "github.com/serenibot/serenibot/backend/internal/model/chat"
	chat "github.com/serenibot/serenibot/backend/internal/service/chat"
)

func TestAppendTurnPreservesOrder(t *testing.T) {
	svc := chat.NewService("")
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	contents := []string{"hello", "hi there", "how are you?", "doing well"}
	roles := []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser, model.RoleAssistant}
	for i := range contents {
		if _, err := svc.AppendTurn(ctx, session.ID, roles[i], contents[i]); err != nil {
			t.Fatalf("AppendTurn err: %v", err)
		}
	}

	history, err := svc.History(ctx, session.ID)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != len(contents) {
		t.Fatalf("unexpected history length: got %d want %d", len(history), len(contents))
	}
	for i, turn := range history {
		if turn.Content != contents[i] {
			t.Fatalf("turn %d out of order: got %q want %q", i, turn.Content, contents[i])
		}
		if turn.Role != roles[i] {
			t.Fatalf("turn %d role mismatch: got %s want %s", i, turn.Role, roles[i])
		}
	}
}

func TestTranscriptMatchesTurnSequence(t *testing.T) {
	svc := chat.NewService("")
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx)
	svc.AppendTurn(ctx, session.ID, model.RoleUser, "I feel tired")
	svc.AppendTurn(ctx, session.ID, model.RoleAssistant, "Rest is important")

	transcript, err := svc.Transcript(ctx, session.ID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}

	want := "User: I feel tired\nAI: Rest is important\n"
	if transcript != want {
		t.Fatalf("unexpected transcript:\ngot  %q\nwant %q", transcript, want)
	}

	lines := strings.Split(strings.TrimRight(transcript, "\n"), "\n")
	history, _ := svc.History(ctx, session.ID)
	if len(lines) != len(history) {
		t.Fatalf("transcript lines (%d) != turns (%d)", len(lines), len(history))
	}
}

func TestGreetingSeedsAssistantTurn(t *testing.T) {
	svc := chat.NewService("Hi, I'm here for you.")
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx)
	history, err := svc.History(ctx, session.ID)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected seeded greeting turn, got %d turns", len(history))
	}
	if history[0].Role != model.RoleAssistant {
		t.Fatalf("greeting should be an assistant turn, got %s", history[0].Role)
	}
}

func TestAppendTurnUnknownSession(t *testing.T) {
	svc := chat.NewService("")
	if _, err := svc.AppendTurn(context.Background(), "missing", model.RoleUser, "hello"); err != chat.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAppendTurnRejectsBadRole(t *testing.T) {
	svc := chat.NewService("")
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	if _, err := svc.AppendTurn(ctx, session.ID, model.Role("system"), "hello"); err != chat.ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	svc := chat.NewService("")
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)
	svc.AppendTurn(ctx, session.ID, model.RoleUser, "original")

	history, _ := svc.History(ctx, session.ID)
	history[0].Content = "mutated"

	fresh, _ := svc.History(ctx, session.ID)
	if fresh[0].Content != "original" {
		t.Fatal("History must return a copy, not the backing slice")
	}
}

func TestListSessionsOldestFirst(t *testing.T) {
	svc := chat.NewService("")
	ctx := context.Background()

	first, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	second, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions err: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].CreatedAt.After(sessions[1].CreatedAt) {
		t.Fatal("sessions not ordered oldest first")
	}

	seen := map[string]bool{sessions[0].ID: true, sessions[1].ID: true}
	if !seen[first.ID] || !seen[second.ID] {
		t.Fatalf("listing missed a session: %+v", sessions)
	}
}

func TestListSessionsEmpty(t *testing.T) {
	svc := chat.NewService("")

	sessions, err := svc.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions err: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}
}
