package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"teamline/internal/config"
	"teamline/internal/db"
	"teamline/internal/engine"
	"teamline/internal/migrate"
)

func TestWebhookDispatcherStopsOnCancel(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	d := &webhookDispatcher{
		engine:   engine.New(conn, config.Default()),
		webhooks: []config.WebhookConfig{{URL: "http://127.0.0.1:9"}},
		client:   &http.Client{Timeout: time.Second},
		cursors:  make(map[int]int64),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("dispatcher kept running after cancel")
	}
}
