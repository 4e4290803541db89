package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/internal/subscriptions"
	"github.com/wonny/earnsight/pkg/logger"
)

// SubscriptionHandler manages per-user ticker subscriptions
type SubscriptionHandler struct {
	registry *subscriptions.Registry
	logger   *logger.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(registry *subscriptions.Registry, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{registry: registry, logger: log}
}

// List returns a user's subscriptions.
// GET /api/users/{userID}/subscriptions
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	subs := h.registry.List(userID)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":       userID,
		"subscriptions": subs,
	})
}

// UpsertRequest is the subscription update body
type UpsertRequest struct {
	Channels []contracts.Channel `json:"channels"`
}

// Upsert creates or replaces a subscription.
// PUT /api/users/{userID}/subscriptions/{ticker}
func (h *SubscriptionHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req UpsertRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	sub, err := h.registry.Upsert(r.Context(), vars["userID"], vars["ticker"], req.Channels)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// Remove deletes a subscription.
// DELETE /api/users/{userID}/subscriptions/{ticker}
func (h *SubscriptionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if !h.registry.Remove(r.Context(), vars["userID"], vars["ticker"]) {
		respondError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
