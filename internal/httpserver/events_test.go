package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"redwhite/dashboard-bff/internal/config"
	"redwhite/dashboard-bff/internal/events"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func openStream(t *testing.T, ctx context.Context, baseURL string) *bufio.Reader {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: "jsessionid", Value: testSID})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
	return bufio.NewReader(resp.Body)
}

func readUntil(t *testing.T, r *bufio.Reader, prefix string) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before %q: %v", prefix, err)
		}
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line)
		}
	}
}

func TestEventStreamReceivesBroadcast(t *testing.T) {
	hub := events.NewHub(8, quietLogger())
	deps := testDeps(fakeAuthenticator{})
	deps.Events = hub
	deps.SSE = config.SSEConfig{BroadcastSecret: "s3cret", PingInterval: time.Hour}
	srv := httptest.NewServer(NewHandler(deps))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream := openStream(t, ctx, srv.URL)
	waitFor(t, func() bool { return hub.Count() == 1 })

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/internal/broadcast", bytes.NewBufferString(`{"type":"kpi","value":42}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected broadcast 200, got %d", resp.StatusCode)
	}

	line := readUntil(t, stream, "data:")
	if line != `data: {"type":"kpi","value":42}` {
		t.Fatalf("unexpected data frame %q", line)
	}
}

func TestEventStreamPings(t *testing.T) {
	deps := testDeps(fakeAuthenticator{})
	deps.Events = events.NewHub(8, quietLogger())
	deps.SSE = config.SSEConfig{PingInterval: 10 * time.Millisecond}
	srv := httptest.NewServer(NewHandler(deps))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream := openStream(t, ctx, srv.URL)

	if line := readUntil(t, stream, ":"); line != ": ping" {
		t.Fatalf("expected ping comment, got %q", line)
	}
}

func TestEventStreamRequiresSession(t *testing.T) {
	deps := testDeps(fakeAuthenticator{})
	deps.Events = events.NewHub(8, quietLogger())
	handler := NewHandler(deps)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBroadcastAuthorization(t *testing.T) {
	hub := events.NewHub(8, quietLogger())
	deps := testDeps(fakeAuthenticator{})
	deps.Events = hub
	deps.SSE = config.SSEConfig{BroadcastSecret: "s3cret"}
	handler := NewHandler(deps)

	send := func(h http.Handler, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/internal/broadcast", bytes.NewBufferString(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(handler, "", `{}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: expected 401, got %d", rec.Code)
	}
	if rec := send(handler, "wrong", `{}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rec.Code)
	}
	if rec := send(handler, "s3cret", `[1,2]`); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-object payload: expected 400, got %d", rec.Code)
	}

	rec := send(handler, "s3cret", `{"hello":"world"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]int
	decodeBody(t, rec, &got)
	if got["broadcasted"] != 0 {
		t.Fatalf("expected zero subscribers, got %v", got)
	}

	deps.SSE.BroadcastSecret = ""
	disabled := NewHandler(deps)
	if rec := send(disabled, "", `{}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unset secret: expected 503, got %d", rec.Code)
	}
}
