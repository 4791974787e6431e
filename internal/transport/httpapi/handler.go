// Package httpapi is the chat channel adapter: it accepts activities on
// POST /api/messages, runs the turn and answers with the outbound message.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

const maxActivityBytes = 1 << 20

// TurnHandler runs one chat turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, text string) (model.OutboundMessage, error)
}

// Account identifies the sender of an activity.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversationRef identifies the channel conversation.
type ConversationRef struct {
	ID string `json:"id"`
}

// Activity is the inbound chat event.
type Activity struct {
	Type         string          `json:"type"`
	ID           string          `json:"id"`
	From         Account         `json:"from"`
	Conversation ConversationRef `json:"conversation"`
	Text         string          `json:"text"`
}

type apiError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewHandler binds the routes. chartsDir is served read-only under /charts/;
// authToken, when set, is required as a bearer token on /api/messages.
func NewHandler(turns TurnHandler, chartsDir, authToken string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/messages", requireBearer(authToken, handleMessages(turns)))
	mux.Handle("GET /charts/", http.StripPrefix("/charts/", http.FileServer(http.Dir(chartsDir))))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		encode(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

func handleMessages(turns TurnHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxActivityBytes))
		if err != nil {
			encodeError(w, http.StatusBadRequest, "cannot read body")
			return
		}
		var act Activity
		if err := sonic.Unmarshal(body, &act); err != nil {
			encodeError(w, http.StatusBadRequest, "body is not a valid activity")
			return
		}
		// Typing indicators, membership updates and the like carry no turn.
		if act.Type != "" && act.Type != "message" {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		out, err := turns.HandleTurn(r.Context(), act.From.ID, act.Text)
		switch {
		case errors.Is(err, errx.ErrInvalidInput):
			encodeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			// The turn failed but out still carries the notice for the user.
			status := errx.StatusOf(err, http.StatusInternalServerError)
			ev := logx.Warn()
			if status >= http.StatusInternalServerError {
				ev = logx.Error()
			}
			ev.Err(err).
				Int("cause_status", status).
				Str("session_id", act.From.ID).
				Str("activity_id", act.ID).
				Msg("turn answered with fallback")
		}
		encode(w, http.StatusOK, out)
	}
}

func requireBearer(token string, next http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := strings.TrimSpace(r.Header.Get("Authorization"))
		got, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			encodeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func encode(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("write response")
	}
}

func encodeError(w http.ResponseWriter, status int, msg string) {
	encode(w, status, apiError{Status: "ERROR", Message: msg})
}
