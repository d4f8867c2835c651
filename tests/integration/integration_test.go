//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/coffee-counter/internal/app"
)

// Response types are declared locally so the tests exercise the wire format,
// not the server's own structs.

type itemResponse struct {
	Temperature string `json:"temperature"`
	Drink       string `json:"drink"`
	Quantity    int    `json:"quantity"`
}

type orderResponse struct {
	UID       string         `json:"uid"`
	Ticket    string         `json:"ticket"`
	CreatedAt string         `json:"createdAt"`
	Status    string         `json:"status"`
	Cups      int            `json:"cups"`
	Items     []itemResponse `json:"items"`
}

type pendingResponse struct {
	Total  int             `json:"total"`
	Orders []orderResponse `json:"orders"`
}

type recentResponse struct {
	Orders []orderResponse `json:"orders"`
}

type completeResponse struct {
	Ticket     string `json:"ticket"`
	UID        string `json:"uid"`
	ServedCups int    `json:"servedCups"`
}

type demandResponse struct {
	TotalCups int            `json:"totalCups"`
	Demand    []itemResponse `json:"demand"`
}

type statsResponse struct {
	Date string `json:"date"`
	Cups int    `json:"cups"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type orderRequest struct {
	Items []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	Temperature string `json:"temperature"`
	Drink       string `json:"drink"`
	Quantity    int    `json:"quantity,omitempty"`
}

// testConfig returns a config suitable for in-process tests: sequential
// tickets for determinism and a rate limit high enough to stay out of the way.
func testConfig() *app.Config {
	return &app.Config{
		Addr:      "127.0.0.1:0",
		Allocator: "sequential",
		RateLimit: app.RateLimitConfig{Max: 10000, Window: time.Minute},
		CORS:      app.CORSConfig{Origins: []string{"*"}},
		Graceful: app.GracefulConfig{
			ReadinessDelay:  time.Millisecond,
			ShutdownTimeout: time.Second,
		},
	}
}

// newServer wires the full application stack without marking it ready.
func newServer(t *testing.T, cfg *app.Config) (*app.Server, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := app.NewServer(ctx, zap.NewNop(), cfg,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	if err != nil {
		t.Fatalf("build server: %v", err)
	}

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

// startServer wires and starts a ready application server.
func startServer(t *testing.T, cfg *app.Config) *httptest.Server {
	t.Helper()

	srv, ts := newServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.Start(ctx)
	t.Cleanup(srv.Stop)
	return ts
}

// HTTP helpers.

func doGet(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()

	resp, err := ts.Client().Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func doPost(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return doPostRaw(t, ts, path, string(data))
}

func doPostRaw(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()

	resp, err := ts.Client().Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func doDelete(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	var v T
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", data, err)
	}
	return v
}
