package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"redwhite/dashboard-bff/internal/audit"
)

const maxBroadcastBody = 64 << 10

func (h *handlers) registerEventHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", h.eventStream)
	mux.HandleFunc("/internal/broadcast", h.broadcast)
}

// eventStream holds a Server-Sent Events connection open and relays hub
// messages as data frames, with a comment ping to keep proxies from timing
// the connection out.
func (h *handlers) eventStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	if h.deps.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub := h.deps.Events.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(h.deps.SSE.PingInterval)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case msg := <-sub.C():
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-ping.C:
			io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (h *handlers) broadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	secret := h.deps.SSE.BroadcastSecret
	if secret == "" || h.deps.Broadcaster == nil {
		writeError(w, http.StatusServiceUnavailable, "broadcast disabled")
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		h.audit(r, "", audit.ActionBroadcast, "", audit.OutcomeFailure, "bad secret")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBroadcastBody+1))
	if err != nil || len(body) > maxBroadcastBody {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "payload must be a JSON object")
		return
	}
	compact, _ := json.Marshal(payload)

	n, err := h.deps.Broadcaster.Broadcast(r.Context(), compact)
	if err != nil {
		h.deps.Logger.Error("broadcast failed", "error", err)
		writeError(w, http.StatusBadGateway, "broadcast failed")
		return
	}
	h.audit(r, "", audit.ActionBroadcast, "", audit.OutcomeSuccess, fmt.Sprintf("subscribers=%d", n))
	writeJSON(w, http.StatusOK, map[string]int{"broadcasted": n})
}
