package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/ayusman/solfa/internal/notes"
	"github.com/ayusman/solfa/internal/store"
)

// EpsilonController is the running pipeline's threshold.
type EpsilonController interface {
	Epsilon() float64
	SetEpsilon(epsilon float64) error
}

// SettingsHandler reads and updates persisted settings. Epsilon changes are
// also applied to the live pipeline when one is attached.
type SettingsHandler struct {
	store *store.Store
	live  EpsilonController
}

// NewSettingsHandler creates a SettingsHandler. live may be nil.
func NewSettingsHandler(s *store.Store, live EpsilonController) *SettingsHandler {
	return &SettingsHandler{store: s, live: live}
}

type settingsResponse struct {
	Epsilon float64 `json:"epsilon"`
	Camera  int     `json:"camera"`
}

type updateSettingsRequest struct {
	Epsilon *float64 `json:"epsilon"`
	Camera  *int     `json:"camera"`
}

// ServeHTTP handles GET and PUT /api/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) current() (settingsResponse, error) {
	settings := h.store.Settings()

	epsilon, err := settings.GetFloat(store.SettingEpsilon, notes.DefaultEpsilon)
	if err != nil {
		return settingsResponse{}, err
	}
	if h.live != nil {
		epsilon = h.live.Epsilon()
	}

	camera, err := settings.GetInt(store.SettingCamera, 0)
	if err != nil {
		return settingsResponse{}, err
	}

	return settingsResponse{Epsilon: epsilon, Camera: camera}, nil
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Epsilon != nil {
		if err := notes.ValidateEpsilon(*req.Epsilon); err != nil {
			writeError(w, http.StatusBadRequest, "epsilon must be a non-negative number")
			return
		}
	}
	if req.Camera != nil && *req.Camera < 0 {
		writeError(w, http.StatusBadRequest, "camera must be a non-negative device id")
		return
	}

	settings := h.store.Settings()
	if req.Epsilon != nil {
		if err := settings.Set(store.SettingEpsilon, strconv.FormatFloat(*req.Epsilon, 'f', -1, 64)); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
		if h.live != nil {
			if err := h.live.SetEpsilon(*req.Epsilon); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Printf("Epsilon set to %v", *req.Epsilon)
		}
	}
	if req.Camera != nil {
		if err := settings.Set(store.SettingCamera, strconv.Itoa(*req.Camera)); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}

	h.get(w, r)
}
