package webserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/KotFed0t/papertrade/config"
)

func TestStartStop(t *testing.T) {
	cfg := &config.Config{}
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.ShutdownTimeout = time.Second

	s := New(cfg, http.NotFoundHandler())
	s.Start()
	s.Stop()

	select {
	case err, ok := <-s.Notify():
		if ok && err != nil {
			t.Fatalf("Notify() got error after graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Notify() was not closed after Stop")
	}
}
