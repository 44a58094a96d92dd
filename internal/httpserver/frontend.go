package httpserver

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"redwhite/dashboard-bff/internal/gate"
	"redwhite/dashboard-bff/internal/observability"
)

func (h *handlers) registerFrontendHandlers(mux *http.ServeMux) {
	distDir := strings.TrimSpace(h.deps.FrontendDistDir)
	if distDir == "" {
		return
	}
	indexPath := filepath.Join(distDir, "index.html")
	if _, err := os.Stat(indexPath); err != nil {
		return
	}

	fileServer := http.FileServer(http.Dir(distDir))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/internal/") {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(r.URL.Path)
		if h.isProtected(cleanPath) {
			if h.edgeGate(r) != gate.Authenticated {
				http.Redirect(w, r, h.deps.Gate.LoginPath, http.StatusSeeOther)
				return
			}
			w.Header().Set("Cache-Control", "no-store")
		}

		if cleanPath == "." || cleanPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		fullPath := filepath.Join(distDir, strings.TrimPrefix(cleanPath, "/"))
		info, err := os.Stat(fullPath)
		if err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		// SPA fallback.
		http.ServeFile(w, r, indexPath)
	})
}

func (h *handlers) isProtected(p string) bool {
	for _, prefix := range h.deps.Gate.ProtectedPrefixes {
		prefix = strings.TrimSuffix(prefix, "/")
		if prefix == "" {
			continue
		}
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

// edgeGate runs the same collapse rule as the client-side gate on the
// session cookie of a full page load.
func (h *handlers) edgeGate(r *http.Request) gate.State {
	sid := h.sessionID(r)
	if sid == "" || h.deps.Auth == nil {
		return gate.Denied
	}
	ok, err := h.deps.Auth.CheckSession(r.Context(), sid)
	if err != nil {
		h.deps.Logger.Warn("edge session check failed", "error", err, "path", r.URL.Path)
	}
	state := gate.Decide(ok, err)
	observability.RecordSessionCheck(state == gate.Authenticated)
	return state
}
