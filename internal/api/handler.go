// Package api serves the token registry over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"aishi/internal/chain"
	"aishi/internal/ledger"
	"aishi/internal/token"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 16

// Handler manages HTTP request handlers
type Handler struct {
	registry *token.Registry
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. A nil gatherer serves the default
// Prometheus registry.
func NewHandler(registry *token.Registry, gatherer prometheus.Gatherer, logger *zap.Logger) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, gatherer: gatherer, logger: logger}
}

// NewRouter returns a router with every route and the logging middleware.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(h.logRequests)
	SetupRoutes(router, h)
	return router
}

// SetupRoutes configures API routes
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/tokens", h.ListTokens).Methods(http.MethodGet)
	router.HandleFunc("/tokens/{id}", h.GetToken).Methods(http.MethodGet)
	router.HandleFunc("/tokens/{id}/uri", h.GetTokenURI).Methods(http.MethodGet)
	router.HandleFunc("/tokens/{id}/owner", h.GetOwner).Methods(http.MethodGet)
	router.HandleFunc("/tokens/{id}/unlock", h.UnlockToken).Methods(http.MethodPost)
	router.HandleFunc("/owners/{address}/balance", h.GetBalance).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)
}

// TokenResponse is the JSON view of a token.
type TokenResponse struct {
	ID         uint64        `json:"id"`
	Owner      chain.Address `json:"owner"`
	Status     string        `json:"status"`
	Unlocked   bool          `json:"unlocked"`
	UnlockFrom time.Time     `json:"unlock_from"`
	UnlockedAt *time.Time    `json:"unlocked_at,omitempty"`
	MintedAt   time.Time     `json:"minted_at"`
	URI        string        `json:"uri"`
	HasPayload bool          `json:"has_payload"`
}

func toResponse(t token.Token) TokenResponse {
	resp := TokenResponse{
		ID:         t.ID,
		Owner:      t.Owner,
		Status:     t.Status(),
		Unlocked:   t.Unlocked,
		UnlockFrom: t.UnlockFrom,
		MintedAt:   t.MintedAt,
		URI:        t.URI,
		HasPayload: t.HasPayload,
	}
	if t.Unlocked {
		at := t.UnlockedAt
		resp.UnlockedAt = &at
	}
	return resp
}

// ListTokens handles GET /tokens
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	toks := h.registry.Tokens()
	out := make([]TokenResponse, 0, len(toks))
	for _, t := range toks {
		out = append(out, toResponse(t))
	}
	respondJSON(w, http.StatusOK, out)
}

// GetToken handles GET /tokens/{id}
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenID(w, r)
	if !ok {
		return
	}

	t, err := h.registry.Token(id)
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toResponse(t))
}

// GetTokenURI handles GET /tokens/{id}/uri
func (h *Handler) GetTokenURI(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenID(w, r)
	if !ok {
		return
	}

	uri, err := h.registry.TokenURI(id)
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"uri": uri})
}

// GetOwner handles GET /tokens/{id}/owner
func (h *Handler) GetOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenID(w, r)
	if !ok {
		return
	}

	owner, err := h.registry.OwnerOf(id)
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]chain.Address{"owner": owner})
}

// UnlockRequest is the body of POST /tokens/{id}/unlock. Hash is the
// committed value, keccak256(keccak256(secret)).
type UnlockRequest struct {
	Caller chain.Address `json:"caller"`
	Hash   chain.Hash    `json:"hash"`
}

// UnlockToken handles POST /tokens/{id}/unlock
func (h *Handler) UnlockToken(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenID(w, r)
	if !ok {
		return
	}

	var req UnlockRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Hash.IsZero() {
		respondError(w, http.StatusBadRequest, "hash is required")
		return
	}

	if err := h.registry.UnlockToken(r.Context(), req.Caller, req.Hash, id); err != nil {
		h.respondRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBalance handles GET /owners/{address}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := chain.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.registry.BalanceOf(addr)
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint64{"balance": n})
}

func tokenID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := token.ParseTokenID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

// respondRegistryError maps registry errors to HTTP statuses.
func (h *Handler) respondRegistryError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, token.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, token.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, token.ErrMismatch),
		errors.Is(err, token.ErrNotYetEligible),
		errors.Is(err, token.ErrAlreadyUnlocked),
		errors.Is(err, token.ErrLocked):
		status = http.StatusConflict
	case errors.Is(err, token.ErrInvalidRecipient),
		errors.Is(err, token.ErrInvalidCommitment),
		errors.Is(err, ledger.ErrNotOwner):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
