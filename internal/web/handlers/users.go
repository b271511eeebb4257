package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rosterd/rosterd/internal/database"
	"github.com/rosterd/rosterd/internal/users"
)

// maxBodyBytes caps user-creation request bodies. Names are short; anything
// bigger than this is rejected before parsing.
const maxBodyBytes = 1024

// CreateUser handles POST /users
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		h.jsonError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	if r.ContentLength > maxBodyBytes {
		h.jsonError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	// ContentLength can lie (or be -1 for chunked bodies), so cap the read too
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.jsonError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.jsonError(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if data == nil {
		h.jsonError(w, "Request body is required", http.StatusBadRequest)
		return
	}
	raw, ok := data["name"]
	if !ok {
		h.jsonError(w, "Name is required", http.StatusBadRequest)
		return
	}

	user, err := h.users.Register(raw)
	if err != nil {
		var verr *users.ValidationError
		switch {
		case errors.As(err, &verr):
			h.jsonError(w, verr.Message, http.StatusBadRequest)
		case errors.Is(err, database.ErrNameTaken):
			h.jsonError(w, "User with this name may already exist", http.StatusConflict)
		default:
			h.jsonError(w, "Database error occurred", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":   user.ID,
		"name": user.Name,
	})
}

// GetUser handles GET /users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.jsonError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	user, err := h.users.Lookup(id)
	if err != nil {
		h.jsonError(w, "Database error occurred", http.StatusInternalServerError)
		return
	}
	if user == nil {
		h.jsonError(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":   user.ID,
		"name": user.Name,
	})
}

// GetUserByName handles GET /users?name={name}
func (h *Handlers) GetUserByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		h.jsonError(w, "Name is required", http.StatusBadRequest)
		return
	}

	user, err := h.users.LookupByName(name)
	if err != nil {
		h.jsonError(w, "Database error occurred", http.StatusInternalServerError)
		return
	}
	if user == nil {
		h.jsonError(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":   user.ID,
		"name": user.Name,
	})
}

// ActiveUsers handles GET /users/active
func (h *Handlers) ActiveUsers(w http.ResponseWriter, r *http.Request) {
	active := h.users.Active()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"active": active,
	})
}
