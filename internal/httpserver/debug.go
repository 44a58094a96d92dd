package httpserver

import (
	"net/http"
	"sort"
)

// registerDebugHandlers mounts the diagnostics endpoints. They are only
// registered when debugging is enabled; otherwise the paths 404.
func (h *handlers) registerDebugHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/_debug", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		info := map[string]any{}
		if h.deps.DebugInfo != nil {
			for k, v := range h.deps.DebugInfo() {
				info[k] = v
			}
		}
		info["cookie"] = h.deps.Cookie.Name
		writeJSON(w, http.StatusOK, info)
	})

	mux.HandleFunc("/api/_echo", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		present := []string{}
		for _, c := range r.Cookies() {
			present = append(present, c.Name)
		}
		sort.Strings(present)

		cookieHeader := "absent"
		if r.Header.Get("Cookie") != "" {
			cookieHeader = "present"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"cookie_name":     h.deps.Cookie.Name,
			"cookies_present": present,
			"has_cookie":      h.sessionID(r) != "",
			"headers_subset": map[string]string{
				"host":              r.Host,
				"origin":            r.Header.Get("Origin"),
				"cookie":            cookieHeader,
				"x-forwarded-proto": r.Header.Get("X-Forwarded-Proto"),
			},
		})
	})
}
