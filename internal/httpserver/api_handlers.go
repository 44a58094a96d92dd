package httpserver

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"redwhite/dashboard-bff/internal/audit"
	"redwhite/dashboard-bff/internal/dashboard"
	"redwhite/dashboard-bff/internal/experiments"
)

const experimentsPrefix = "/api/experimentos/"

func (h *handlers) registerAPIHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/publicos", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := h.requireSession(w, r); !ok {
			return
		}
		writeJSON(w, http.StatusOK, dashboard.Publicos())
	})

	mux.HandleFunc("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := h.requireSession(w, r); !ok {
			return
		}
		q, err := dashboard.ParseQuery(r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, dashboard.Build(q))
	})

	mux.HandleFunc("/api/experimentos", h.experimentsCollection)
	mux.HandleFunc(experimentsPrefix, func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, experimentsPrefix)
		if id == "" {
			h.experimentsCollection(w, r)
			return
		}
		h.experimentItem(w, r, id)
	})
}

func (h *handlers) experimentsCollection(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	if h.deps.Experiments == nil {
		writeError(w, http.StatusServiceUnavailable, "experiments service unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		items, err := h.deps.Experiments.List(r.Context())
		if err != nil {
			h.deps.Logger.Error("list experiments failed", "error", err)
			writeError(w, http.StatusInternalServerError, "list experiments failed")
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		in, err := decodeExperimentInput(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(in.Nombre) == "" {
			writeError(w, http.StatusBadRequest, "Nombre requerido")
			return
		}
		created, err := h.deps.Experiments.Create(r.Context(), in)
		if err != nil {
			if errors.Is(err, experiments.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.deps.Logger.Error("create experiment failed", "error", err)
			writeError(w, http.StatusInternalServerError, "create experiment failed")
			return
		}
		h.audit(r, "", audit.ActionExperimentCreate, created.ID, audit.OutcomeSuccess, created.Nombre)
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *handlers) experimentItem(w http.ResponseWriter, r *http.Request, id string) {
	if strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "experiment not found")
		return
	}
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	if h.deps.Experiments == nil {
		writeError(w, http.StatusServiceUnavailable, "experiments service unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		e, err := h.deps.Experiments.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, experiments.ErrNotFound) {
				writeError(w, http.StatusNotFound, "experiment not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "get experiment failed")
			return
		}
		writeJSON(w, http.StatusOK, e)
	case http.MethodPatch, http.MethodPut:
		in, err := decodeExperimentInput(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated, err := h.deps.Experiments.Update(r.Context(), id, in)
		if err != nil {
			if errors.Is(err, experiments.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if errors.Is(err, experiments.ErrNotFound) {
				writeError(w, http.StatusNotFound, "experiment not found")
				return
			}
			h.deps.Logger.Error("update experiment failed", "error", err)
			writeError(w, http.StatusInternalServerError, "update experiment failed")
			return
		}
		h.audit(r, "", audit.ActionExperimentUpdate, updated.ID, audit.OutcomeSuccess, updated.Estado)
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := h.deps.Experiments.Delete(r.Context(), id); err != nil {
			if errors.Is(err, experiments.ErrNotFound) {
				writeError(w, http.StatusNotFound, "experiment not found")
				return
			}
			h.deps.Logger.Error("delete experiment failed", "error", err)
			writeError(w, http.StatusInternalServerError, "delete experiment failed")
			return
		}
		h.audit(r, "", audit.ActionExperimentDelete, id, audit.OutcomeSuccess, "")
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// decodeExperimentInput accepts a JSON body, or form/query values for the
// urlencoded variant.
func decodeExperimentInput(r *http.Request) (experiments.Input, error) {
	var in experiments.Input
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return experiments.Input{}, err
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return experiments.Input{}, err
	}
	in.Nombre = r.Form.Get("nombre")
	in.Estado = r.Form.Get("estado")
	return in, nil
}
