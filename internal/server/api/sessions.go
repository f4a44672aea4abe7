package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/solfa/internal/store"
)

// SessionHandler serves recorded sessions and their note events.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and /api/sessions/{id}/events.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/sessions")

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "events":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.events(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

type sessionResponse struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Epsilon   float64        `json:"epsilon"`
	Frames    int            `json:"frames"`
	StartedAt string         `json:"started_at"`
	EndedAt   string         `json:"ended_at,omitempty"`
	Played    map[string]int `json:"played"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type eventResponse struct {
	Note        string `json:"note"`
	State       string `json:"state"`
	Frame       int    `json:"frame"`
	TimestampMs int64  `json:"timestamp_ms"`
}

type listEventsResponse struct {
	SessionID string          `json:"session_id"`
	Events    []eventResponse `json:"events"`
}

func (h *SessionHandler) toResponse(sess *store.Session) (sessionResponse, error) {
	played, err := h.store.Events().CountOn(sess.ID)
	if err != nil {
		return sessionResponse{}, err
	}

	resp := sessionResponse{
		ID:        sess.ID,
		Source:    sess.Source,
		Epsilon:   sess.Epsilon,
		Frames:    sess.Frames,
		StartedAt: sess.StartedAt.Format(timeFormat),
		Played:    played,
	}
	if sess.EndedAt != nil {
		resp.EndedAt = sess.EndedAt.Format(timeFormat)
	}
	return resp, nil
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, sess := range sessions {
		resp, err := h.toResponse(sess)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to count notes")
			return
		}
		response.Sessions = append(response.Sessions, resp)
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	resp, err := h.toResponse(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count notes")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// events handles GET /api/sessions/{id}/events.
func (h *SessionHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	events, err := h.store.Events().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{SessionID: id, Events: make([]eventResponse, 0, len(events))}
	for _, e := range events {
		response.Events = append(response.Events, eventResponse{
			Note:        e.Note,
			State:       string(e.State),
			Frame:       e.Frame,
			TimestampMs: e.TimestampMs,
		})
	}

	writeJSON(w, http.StatusOK, response)
}
