package handlers

import (
	"net/http"

	"github.com/rosterd/rosterd/internal/database"
	"github.com/rosterd/rosterd/internal/users"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db    *database.DB
	users *users.Service
}

// New creates a new Handlers instance
func New(db *database.DB, svc *users.Service) *Handlers {
	return &Handlers{
		db:    db,
		users: svc,
	}
}

// jsonError sends a JSON error response
func (h *Handlers) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
