package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
)

type fakeTurns struct {
	mu    sync.Mutex
	calls [][2]string
	out   model.OutboundMessage
	err   error
}

func (f *fakeTurns) HandleTurn(_ context.Context, sessionID, text string) (model.OutboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [2]string{sessionID, text})
	if f.err != nil {
		return f.out, f.err
	}
	if strings.TrimSpace(text) == "" {
		return model.OutboundMessage{}, fmt.Errorf("%w: empty", errx.ErrInvalidInput)
	}
	return f.out, nil
}

func post(t *testing.T, h http.Handler, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const activity = `{"type":"message","id":"a1","from":{"id":"user-1","name":"Ann"},"conversation":{"id":"c1"},"text":"top 3 customers"}`

func TestPostMessage(t *testing.T) {
	turns := &fakeTurns{out: model.ImageMessage("https://example.com/charts/a.png")}
	h := NewHandler(turns, t.TempDir(), "")

	rec := post(t, h, activity, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got model.OutboundMessage
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, turns.out, got)
	assert.Equal(t, [][2]string{{"user-1", "top 3 customers"}}, turns.calls)
}

func TestPostMessageFallbackIsDelivered(t *testing.T) {
	turns := &fakeTurns{
		out: model.TextMessage("The bot encountered an error or bug."),
		err: &errx.UnhandledTurnError{SessionID: "user-1", Err: fmt.Errorf("boom")},
	}
	rec := post(t, NewHandler(turns, t.TempDir(), ""), activity, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "The bot encountered an error or bug.")
}

func TestFallbackLogsCauseStatus(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	tests := []struct {
		name   string
		err    error
		status int
		level  string
	}{
		{
			name:   "store not found",
			err:    &errx.UnhandledTurnError{SessionID: "user-1", Err: errx.New(fmt.Errorf("no rows"), http.StatusNotFound, errx.StoreNotFoundMessage)},
			status: http.StatusNotFound,
			level:  "warn",
		},
		{
			name:   "redis unavailable",
			err:    &errx.UnhandledTurnError{SessionID: "user-1", Err: errx.New(fmt.Errorf("dial tcp"), http.StatusServiceUnavailable, "redis unavailable")},
			status: http.StatusServiceUnavailable,
			level:  "error",
		},
		{
			name:   "plain failure",
			err:    &errx.UnhandledTurnError{SessionID: "user-1", Err: fmt.Errorf("boom")},
			status: http.StatusInternalServerError,
			level:  "error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			turns := &fakeTurns{out: model.TextMessage("The bot encountered an error or bug."), err: tt.err}
			rec := post(t, NewHandler(turns, t.TempDir(), ""), activity, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var entry struct {
				Level       string `json:"level"`
				CauseStatus int    `json:"cause_status"`
				SessionID   string `json:"session_id"`
			}
			require.NoError(t, sonic.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.status, entry.CauseStatus)
			assert.Equal(t, "user-1", entry.SessionID)
		})
	}
}

func TestPostMessageRejects(t *testing.T) {
	turns := &fakeTurns{out: model.TextMessage("ok")}
	h := NewHandler(turns, t.TempDir(), "secret")

	tests := []struct {
		name  string
		body  string
		token string
		code  int
	}{
		{name: "missing token", body: activity, code: http.StatusUnauthorized},
		{name: "wrong token", body: activity, token: "nope", code: http.StatusUnauthorized},
		{name: "bad json", body: "{", token: "secret", code: http.StatusBadRequest},
		{name: "empty text", body: `{"type":"message","from":{"id":"u"},"text":" "}`, token: "secret", code: http.StatusBadRequest},
		{name: "non message activity", body: `{"type":"typing","from":{"id":"u"}}`, token: "secret", code: http.StatusAccepted},
		{name: "ok", body: activity, token: "secret", code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, post(t, h, tt.body, tt.token).Code)
		})
	}
}

func TestChartsAndHealth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.png"), []byte("png-bytes"), 0o644))
	srv := httptest.NewServer(NewHandler(&fakeTurns{}, dir, "secret"))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/charts/abc.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", string(body))

	resp, err = srv.Client().Post(srv.URL+"/charts/abc.png", "image/png", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerRunStopsOnCancel(t *testing.T) {
	s := NewServer(Config{Addr: "127.0.0.1:0"}, http.NewServeMux())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
