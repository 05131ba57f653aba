package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/services"
)

// NetHandler, voice net tanımı endpoint'lerini yönetir.
type NetHandler struct {
	netService services.NetService
}

// NewNetHandler, constructor.
func NewNetHandler(netService services.NetService) *NetHandler {
	return &NetHandler{netService: netService}
}

// List godoc
// GET /api/nets?event_id=...
// Net'leri priority DESC, code ASC sırasıyla döner.
func (h *NetHandler) List(w http.ResponseWriter, r *http.Request) {
	nets, err := h.netService.List(r.Context(), r.URL.Query().Get("event_id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, nets)
}

// Create godoc
// POST /api/nets
// Yeni net oluşturur. MANAGE_NETS yetkisi gerektirir.
func (h *NetHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	var req models.CreateNetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	net, err := h.netService.Create(r.Context(), claims, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, net)
}

// Get godoc
// GET /api/nets/{netId}
func (h *NetHandler) Get(w http.ResponseWriter, r *http.Request) {
	net, err := h.netService.GetByID(r.Context(), r.PathValue("netId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, net)
}
