//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
)

func TestLivez(t *testing.T) {
	ts := startServer(t, testConfig())

	resp := doGet(t, ts, "/livez")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[healthResponse](t, resp)
	if body.Status != "ok" {
		t.Errorf("status: got %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_Lifecycle(t *testing.T) {
	srv, ts := newServer(t, testConfig())

	// Before Start the service must report not ready.
	resp := doGet(t, ts, "/readyz")
	body := decodeJSON[healthResponse](t, resp)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("before start: expected 503, got %d", resp.StatusCode)
	}
	if body.Status != "unhealthy" {
		t.Errorf("before start: status %q", body.Status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)

	resp = doGet(t, ts, "/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("after start: expected 200, got %d", resp.StatusCode)
	}

	// Stop flips readiness back off for draining.
	srv.Stop()
	resp = doGet(t, ts, "/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("after stop: expected 503, got %d", resp.StatusCode)
	}
}
