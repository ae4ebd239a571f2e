// Package lookup serves the client and concrete class lists the request
// form offers.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type Lists interface {
	ListClients(ctx context.Context) ([]string, error)
	AddClient(ctx context.Context, name string) error
	ListConcreteClasses(ctx context.Context) ([]string, error)
	AddConcreteClass(ctx context.Context, name string) error
}

type Handler struct {
	Repo Lists
	Log  *zap.Logger
}

type addRequest struct {
	Name string `json:"name"`
}

func (h *Handler) GetClients(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Repo.ListClients)
}

func (h *Handler) AddClient(w http.ResponseWriter, r *http.Request) {
	h.add(w, r, 200, h.Repo.AddClient)
}

func (h *Handler) GetConcreteClasses(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Repo.ListConcreteClasses)
}

func (h *Handler) AddConcreteClass(w http.ResponseWriter, r *http.Request) {
	h.add(w, r, 100, h.Repo.AddConcreteClass)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, get func(context.Context) ([]string, error)) {
	names, err := get(r.Context())
	if err != nil {
		h.logger().Error("list lookup", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(names)
}

// add stores a trimmed name of at most limit characters.
func (h *Handler) add(w http.ResponseWriter, r *http.Request, limit int, put func(context.Context, string) error) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len([]rune(req.Name)) > limit {
		http.Error(w, fmt.Sprintf("Name required, at most %d characters", limit), http.StatusBadRequest)
		return
	}
	if err := put(r.Context(), req.Name); err != nil {
		h.logger().Error("add lookup", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) logger() *zap.Logger {
	if h.Log != nil {
		return h.Log
	}
	return zap.NewNop()
}
