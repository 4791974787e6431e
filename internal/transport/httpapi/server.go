package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	logx "github.com/Chative-analytics/server/pkg/logger"
)

type Config struct {
	Addr         string        `envconfig:"HTTP_ADDR" default:":8000"`
	AuthToken    string        `envconfig:"HTTP_AUTH_TOKEN"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"150s"`
}

// Server runs the handler until its context ends.
type Server struct {
	srv *http.Server
}

func NewServer(cfg Config, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}}
}

// Run serves until ctx is cancelled, then drains in-flight turns.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	grace := s.srv.WriteTimeout
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	logx.Info().Msg("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
