package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	chatmodel "github.com/serenibot/serenibot/backend/internal/model/chat"
	chatservice "github.com/serenibot/serenibot/backend/internal/service/chat"
	"github.com/serenibot/serenibot/backend/internal/service/insight"
)

// Responder produces the next assistant message for a turn log.
type Responder interface {
	Reply(ctx context.Context, turns []chatmodel.Turn, userText string) (string, error)
}

// InsightSource derives the advisory for a user input.
type InsightSource interface {
	Generate(ctx context.Context, text string) (insight.Insight, error)
}

// TurnResult carries both outputs of one orchestrated turn.
type TurnResult struct {
	Reply   string          `json:"response"`
	Insight insight.Insight `json:"insight"`
}

// Orchestrator coordinates the store, the chat model and the insight
// generator for one user turn.
type Orchestrator struct {
	store     *chatservice.Service
	responder Responder
	insights  InsightSource
	timeout   time.Duration
	log       *logrus.Logger

	sessionLocks sync.Map // session ID -> *sync.Mutex
}

// NewOrchestrator wires the turn pipeline. timeout bounds each model
// call; zero disables the deadline.
func NewOrchestrator(store *chatservice.Service, responder Responder, insights InsightSource, timeout time.Duration, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		responder: responder,
		insights:  insights,
		timeout:   timeout,
		log:       log,
	}
}

// ReplyFunc produces the assistant reply for a prepared turn. The
// caller receives the history with the user turn already appended.
type ReplyFunc func(ctx context.Context, turns []chatmodel.Turn) (string, error)

// HandleTurn runs one turn strictly in sequence: append the user turn,
// ask the model with the current history, append the assistant turn,
// then derive the insight from the user's input (not the reply).
//
// There is no rollback: when the model call fails the just-appended
// user turn stays in the history and the caller sees the error. Turns
// are serialized per session; calls for different sessions proceed
// independently. HandleTurn is deliberately not idempotent.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userText string) (TurnResult, error) {
	return o.HandleTurnWith(ctx, sessionID, userText, func(replyCtx context.Context, turns []chatmodel.Turn) (string, error) {
		return o.responder.Reply(replyCtx, turns, userText)
	})
}

// HandleTurnWith runs the same sequence with a caller-supplied reply
// step, so streaming transports emit their frames inside the session
// lock and under the same deadline instead of re-implementing the
// pipeline against the store.
func (o *Orchestrator) HandleTurnWith(ctx context.Context, sessionID, userText string, reply ReplyFunc) (TurnResult, error) {
	unlock := o.lockSession(sessionID)
	defer unlock()

	if _, err := o.store.AppendTurn(ctx, sessionID, chatmodel.RoleUser, userText); err != nil {
		return TurnResult{}, err
	}

	history, err := o.store.History(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	replyCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		replyCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	replyText, err := reply(replyCtx, history)
	if err != nil {
		o.log.WithField("session", sessionID).WithError(err).Warn("model call failed, user turn kept")
		return TurnResult{}, err
	}

	if _, err := o.store.AppendTurn(ctx, sessionID, chatmodel.RoleAssistant, replyText); err != nil {
		return TurnResult{}, err
	}

	turnInsight, err := o.insights.Generate(ctx, userText)
	if err != nil {
		return TurnResult{}, err
	}

	return TurnResult{Reply: replyText, Insight: turnInsight}, nil
}

// HandleTool resolves a canned prompt and routes it through the same
// turn pipeline as typed input.
func (o *Orchestrator) HandleTool(ctx context.Context, sessionID, tool string) (TurnResult, error) {
	promptText, ok := PromptForTool(tool)
	if !ok {
		return TurnResult{}, ErrUnknownTool
	}
	return o.HandleTurn(ctx, sessionID, promptText)
}

func (o *Orchestrator) lockSession(sessionID string) func() {
	value, _ := o.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
