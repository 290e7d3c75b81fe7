package app

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

func TestServerServesUntilCancelled(t *testing.T) {
	t.Setenv("HACKMATE_TEAMS_DB_PATH", filepath.Join(t.TempDir(), "teams.db"))
	t.Setenv("HACKMATE_JWT_SECRET", "test-secret")

	server, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	if err != nil {
		cancel()
		t.Fatalf("health check: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		cancel()
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewRequiresJWTSecret(t *testing.T) {
	t.Setenv("HACKMATE_TEAMS_DB_PATH", filepath.Join(t.TempDir(), "teams.db"))
	t.Setenv("HACKMATE_JWT_SECRET", "")

	if _, err := New("127.0.0.1:0"); err == nil {
		t.Fatal("expected error for missing signing secret")
	}
}
