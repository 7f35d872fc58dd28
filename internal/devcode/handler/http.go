// Package handler serves the dev-only verification code lookup endpoint.
package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"signup-verify/internal/devcode"
)

// Handler serves GET /dev/verification-code/{id}. Only mount it when DEV_CODE_MODE is enabled.
type Handler struct {
	store devcode.Store
}

// NewHandler returns a dev code handler backed by store.
func NewHandler(store devcode.Store) *Handler {
	return &Handler{store: store}
}

// Register wires the handler into r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/dev/verification-code/{id}", h.getCode).Methods(http.MethodGet)
}

type codeResponse struct {
	AccountID string `json:"account_id"`
	Code      string `json:"code"`
}

func (h *Handler) getCode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	code, ok := h.store.Get(r.Context(), id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no code recorded for account"})
		return
	}
	writeJSON(w, http.StatusOK, codeResponse{AccountID: id, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("devcode: encode response failed: %v", err)
	}
}
