// Package assistant is the entry point of a chat turn: it serialises turns
// per session, runs the agent graph under a deadline and converts every
// failure into a message the user can read.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chative-analytics/server/internal/agent/graph"
	"github.com/Chative-analytics/server/internal/agent/model"
	"github.com/Chative-analytics/server/internal/agent/reply"
	errx "github.com/Chative-analytics/server/internal/core/error"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

const (
	UnhandledText = "The bot encountered an error or bug."
	TimeoutText   = "Sorry, that took too long. Please try again."
)

// Assistant handles turns for any number of sessions. Turns of one session
// run one at a time; different sessions run concurrently.
type Assistant struct {
	runner      graph.Runner
	replies     *reply.Builder
	turnTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionLock
}

type sessionLock struct {
	sem  chan struct{}
	refs int
}

func New(runner graph.Runner, replies *reply.Builder, turnTimeout time.Duration) *Assistant {
	return &Assistant{
		runner:      runner,
		replies:     replies,
		turnTimeout: turnTimeout,
		sessions:    map[string]*sessionLock{},
	}
}

// HandleTurn runs one user turn. The returned message is always deliverable:
// on failure it carries a generic notice and err is an
// *errx.UnhandledTurnError. Empty input or session id yields
// errx.ErrInvalidInput without touching the session.
func (a *Assistant) HandleTurn(ctx context.Context, sessionID, text string) (model.OutboundMessage, error) {
	sessionID = strings.TrimSpace(sessionID)
	text = strings.TrimSpace(text)
	if sessionID == "" || text == "" {
		return model.OutboundMessage{}, fmt.Errorf("%w: session id and text are required", errx.ErrInvalidInput)
	}

	release, err := a.acquire(ctx, sessionID)
	if err != nil {
		return a.fail(sessionID, err)
	}
	defer release()

	if a.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.turnTimeout)
		defer cancel()
	}

	turnID := uuid.NewString()
	start := time.Now()
	logx.Info().Str("session_id", sessionID).Str("turn_id", turnID).Msg("turn started")

	res, err := a.run(ctx, sessionID, text)
	if err != nil {
		return a.fail(sessionID, err)
	}

	out := a.replies.Build(ctx, sessionID, res)
	logx.Info().
		Str("session_id", sessionID).
		Str("turn_id", turnID).
		Str("kind", string(out.Kind)).
		Int("tool_calls", res.ToolCalls).
		Int("tool_failures", len(res.Failures)).
		Dur("duration", time.Since(start)).
		Msg("turn finished")
	return out, nil
}

// run invokes the graph and turns a panic into an error.
func (a *Assistant) run(ctx context.Context, sessionID, text string) (res *model.TurnResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return a.runner.Invoke(ctx, model.TurnInput{ConversationID: sessionID, Query: text})
}

func (a *Assistant) fail(sessionID string, err error) (model.OutboundMessage, error) {
	text := UnhandledText
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errx.ErrTimeout) {
		text = TimeoutText
	}
	logx.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")
	return model.TextMessage(text), &errx.UnhandledTurnError{SessionID: sessionID, Err: err}
}

// acquire waits for the session's turn slot or for ctx to end.
func (a *Assistant) acquire(ctx context.Context, sessionID string) (func(), error) {
	a.mu.Lock()
	l, ok := a.sessions[sessionID]
	if !ok {
		l = &sessionLock{sem: make(chan struct{}, 1)}
		a.sessions[sessionID] = l
	}
	l.refs++
	a.mu.Unlock()

	unref := func() {
		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.sessions, sessionID)
		}
		a.mu.Unlock()
	}

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			unref()
		}, nil
	case <-ctx.Done():
		unref()
		return nil, ctx.Err()
	}
}
