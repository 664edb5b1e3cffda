package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	chatmodel "github.com/serenibot/serenibot/backend/internal/model/chat"
	sentimentmodel "github.com/serenibot/serenibot/backend/internal/model/sentiment"
	chatservice "github.com/serenibot/serenibot/backend/internal/service/chat"
	"github.com/serenibot/serenibot/backend/internal/service/conversation"
	"github.com/serenibot/serenibot/backend/internal/service/insight"
)

type stubModel struct {
	streaming bool
	reply     string
	err       error
	chunks    []*schema.Message
	block     chan struct{} // when non-nil, Reply waits for it
}

func (s *stubModel) StreamingEnabled() bool { return s.streaming }

func (s *stubModel) Reply(_ context.Context, _ []chatmodel.Turn, _ string) (string, error) {
	if s.block != nil {
		<-s.block
	}
	return s.reply, s.err
}

func (s *stubModel) StreamReply(context.Context, []chatmodel.Turn, string) (*schema.StreamReader[*schema.Message], error) {
	if s.err != nil {
		return nil, s.err
	}
	return schema.StreamReaderFromArray(s.chunks), nil
}

type stableInsights struct{}

func (stableInsights) Generate(context.Context, string) (insight.Insight, error) {
	return insight.Insight{
		Advisory:  insight.StableAdvisory,
		Sentiment: sentimentmodel.Result{Label: sentimentmodel.Neutral, Score: 0.5},
	}, nil
}

func newStreamFixture(t *testing.T, model *stubModel) (*Handler, *chatservice.Service, *conversation.Orchestrator, string) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := chatservice.NewService("")
	orch := conversation.NewOrchestrator(store, model, stableInsights{}, 0, log)

	session, err := store.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	return New(model, store, orch, log), store, orch, session.ID
}

func decodeFrames(t *testing.T, body string) []Response {
	t.Helper()

	var frames []Response
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame Response
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("failed to decode frame %q: %v", line, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func eventNames(frames []Response) []string {
	names := make([]string, len(frames))
	for i, frame := range frames {
		names[i] = frame.Event
	}
	return names
}

func TestStreamEventOrderingNonStreaming(t *testing.T) {
	model := &stubModel{reply: "take it one step at a time"}
	h, store, _, sessionID := newStreamFixture(t, model)

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, sessionID, "I feel stuck"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type %q, want text/event-stream", got)
	}

	frames := decodeFrames(t, rec.Body.String())
	want := []string{"start", "message", "insight", "end"}
	got := eventNames(frames)
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v, want %v", got, want)
		}
	}
	if frames[1].Content != "take it one step at a time" {
		t.Fatalf("unexpected message content %q", frames[1].Content)
	}
	if frames[2].Insight == nil {
		t.Fatal("insight frame has no payload")
	}
	if !frames[3].Finished {
		t.Fatal("end frame not marked finished")
	}

	turns, err := store.History(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != chatmodel.RoleUser || turns[1].Role != chatmodel.RoleAssistant {
		t.Fatalf("unexpected history after stream: %+v", turns)
	}
}

func TestStreamEmitsDeltas(t *testing.T) {
	model := &stubModel{
		streaming: true,
		chunks: []*schema.Message{
			schema.AssistantMessage("Take a ", nil),
			schema.AssistantMessage("breath.", nil),
		},
	}
	h, store, _, sessionID := newStreamFixture(t, model)

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, sessionID, "help me calm down"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	frames := decodeFrames(t, rec.Body.String())
	want := []string{"start", "delta", "delta", "message", "insight", "end"}
	got := eventNames(frames)
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v, want %v", got, want)
		}
	}
	if frames[1].Content != "Take a " || frames[2].Content != "breath." {
		t.Fatalf("unexpected delta contents: %q, %q", frames[1].Content, frames[2].Content)
	}
	if frames[3].Content != "Take a breath." {
		t.Fatalf("unexpected assembled message %q", frames[3].Content)
	}

	turns, err := store.History(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(turns) != 2 || turns[1].Content != "Take a breath." {
		t.Fatalf("unexpected history after stream: %+v", turns)
	}
}

func TestStreamFailureKeepsUserTurn(t *testing.T) {
	model := &stubModel{err: errors.New("model unavailable")}
	h, store, _, sessionID := newStreamFixture(t, model)

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, sessionID, "hello"); err == nil {
		t.Fatal("expected error from failing model")
	}

	frames := decodeFrames(t, rec.Body.String())
	got := eventNames(frames)
	if len(got) != 2 || got[0] != "start" || got[1] != "error" {
		t.Fatalf("events %v, want [start error]", got)
	}

	turns, err := store.History(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(turns) != 1 || turns[0].Role != chatmodel.RoleUser {
		t.Fatalf("expected only the user turn to remain, got %+v", turns)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	h, _, _, _ := newStreamFixture(t, &stubModel{reply: "unused"})

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "no-such", "hello"); err == nil {
		t.Fatal("expected error for unknown session")
	}

	frames := decodeFrames(t, rec.Body.String())
	if len(frames) != 1 || frames[0].Event != "error" {
		t.Fatalf("events %v, want a single error frame", eventNames(frames))
	}
}

func TestStreamTurnSerializedWithMessageTurn(t *testing.T) {
	block := make(chan struct{})
	model := &stubModel{reply: "steady", block: block}
	h, store, orch, sessionID := newStreamFixture(t, model)

	streamDone := make(chan error, 1)
	go func() {
		rec := httptest.NewRecorder()
		streamDone <- h.HandleStreamRequest(context.Background(), rec, sessionID, "first")
	}()

	turnDone := make(chan error, 1)
	go func() {
		// Let the stream request reach the model call first so the
		// plain turn has to queue behind the session lock.
		time.Sleep(20 * time.Millisecond)
		_, err := orch.HandleTurn(context.Background(), sessionID, "second")
		turnDone <- err
	}()

	time.Sleep(50 * time.Millisecond)
	close(block)

	if err := <-streamDone; err != nil {
		t.Fatalf("stream turn err: %v", err)
	}
	if err := <-turnDone; err != nil {
		t.Fatalf("message turn err: %v", err)
	}

	turns, err := store.History(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	wantRoles := []chatmodel.Role{chatmodel.RoleUser, chatmodel.RoleAssistant, chatmodel.RoleUser, chatmodel.RoleAssistant}
	for i, role := range wantRoles {
		if turns[i].Role != role {
			t.Fatalf("turn %d role %s, want %s (history %+v)", i, turns[i].Role, role, turns)
		}
	}
	// Both orders are valid; what matters is that user/assistant
	// pairs never interleave.
	gotUsers := map[string]bool{turns[0].Content: true, turns[2].Content: true}
	if !gotUsers["first"] || !gotUsers["second"] {
		t.Fatalf("unexpected user turns: %q and %q", turns[0].Content, turns[2].Content)
	}
}
