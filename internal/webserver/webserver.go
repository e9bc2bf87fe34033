package webserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/KotFed0t/papertrade/config"
)

type WebServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
	notify          chan error
}

func New(cfg *config.Config, handler http.Handler) *WebServer {
	return &WebServer{
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: cfg.HTTP.ShutdownTimeout,
		notify:          make(chan error, 1),
	}
}

func (s *WebServer) Start() {
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webserver stopped unexpectedly", slog.String("err", err.Error()))
			s.notify <- err
		}
		close(s.notify)
	}()
	slog.Info("webserver started!", slog.String("addr", s.server.Addr))
}

// Notify delivers the error that stopped the server, if any.
func (s *WebServer) Notify() <-chan error {
	return s.notify
}

func (s *WebServer) Stop() {
	slog.Info("start stopping webserver")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("webserver shutdown error", slog.String("err", err.Error()))
		return
	}

	slog.Info("webserver stopped")
}
