package handlers

import (
	"context"
	"net/http"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/services"
)

// HailHandler, stage mode konuşma izni endpoint'lerini yönetir.
type HailHandler struct {
	hail services.HailService
}

// NewHailHandler, constructor.
func NewHailHandler(hail services.HailService) *HailHandler {
	return &HailHandler{hail: hail}
}

// Get godoc
// GET /api/nets/{netId}/hail
func (h *HailHandler) Get(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, h.hail.Snapshot(r.PathValue("netId")))
}

// Request godoc
// POST /api/nets/{netId}/hail
func (h *HailHandler) Request(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	snapshot, err := h.hail.Request(r.Context(), claims, r.PathValue("netId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, snapshot)
}

// Grant godoc
// POST /api/nets/{netId}/hail/{userId}/grant
func (h *HailHandler) Grant(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.hail.Grant)
}

// Deny godoc
// POST /api/nets/{netId}/hail/{userId}/deny
func (h *HailHandler) Deny(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.hail.Deny)
}

// Revoke godoc
// POST /api/nets/{netId}/hail/{userId}/revoke
func (h *HailHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.hail.Revoke)
}

type hailCommand func(ctx context.Context, actor *models.TokenClaims, netID, userID string) (models.HailSnapshot, error)

func (h *HailHandler) command(w http.ResponseWriter, r *http.Request, fn hailCommand) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	snapshot, err := fn(r.Context(), claims, r.PathValue("netId"), r.PathValue("userId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, snapshot)
}
