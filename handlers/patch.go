package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/services"
)

// PatchHandler, net patch endpoint'lerini yönetir.
type PatchHandler struct {
	patchService services.PatchService
}

// NewPatchHandler, constructor.
func NewPatchHandler(patchService services.PatchService) *PatchHandler {
	return &PatchHandler{patchService: patchService}
}

// ListByEvent godoc
// GET /api/events/{eventId}/patches?active=true
func (h *PatchHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")

	var (
		patches []models.NetPatch
		err     error
	)
	if r.URL.Query().Get("active") == "true" {
		patches, err = h.patchService.ListActive(r.Context(), eventID)
	} else {
		patches, err = h.patchService.ListByEvent(r.Context(), eventID)
	}
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, patches)
}

// Create godoc
// POST /api/patches
// Loop oluşturacak patch 409 ile reddedilir ve persist edilmez.
func (h *PatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	var req models.CreatePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch, err := h.patchService.CreatePatch(r.Context(), claims, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, patch)
}

// Check godoc
// POST /api/patches/check
// Dry-run loop kontrolü; hiçbir şey yazılmaz.
func (h *PatchHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.patchService.Check(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, result)
}

// Terminate godoc
// POST /api/patches/{id}/terminate
func (h *PatchHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	patch, err := h.patchService.TerminatePatch(r.Context(), claims, r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, patch)
}
