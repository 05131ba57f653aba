package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/services"
)

// ClientOwner, bir client ID'nin kullanıcıya ait olup olmadığını söyler.
// SessionRegistry (açık session) ve ws.Hub (canlı bağlantı) bunu sağlar.
type ClientOwner interface {
	OwnsClient(userID, clientID string) bool
}

// TxHandler, transmit authority endpoint'lerini yönetir.
//
// Red bir hata değildir: claim sonucu her zaman 200 ile döner,
// granted=false ise authority alanı kimin konuştuğunu gösterir.
// Body'deki client_id, çağıranın session'ı veya bağlantısı değilse 403 döner.
type TxHandler struct {
	arbiter services.TransmitArbiter
	hail    services.HailService
	owners  []ClientOwner
}

// NewTxHandler, constructor. owners'tan herhangi biri client'ı tanırsa
// client_id çağırana ait sayılır.
func NewTxHandler(arbiter services.TransmitArbiter, hail services.HailService, owners ...ClientOwner) *TxHandler {
	return &TxHandler{arbiter: arbiter, hail: hail, owners: owners}
}

// List godoc
// GET /api/tx
// Başka kullanıcıların client_id'leri gizlenir.
func (h *TxHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	list := h.arbiter.List()
	for i := range list {
		list[i] = *list[i].VisibleTo(claims.UserID)
	}
	pkg.JSON(w, http.StatusOK, list)
}

// Get godoc
// GET /api/nets/{netId}/tx
// Authority yoksa data null döner.
func (h *TxHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	pkg.JSON(w, http.StatusOK, h.arbiter.Get(r.PathValue("netId")).VisibleTo(claims.UserID))
}

// Claim godoc
// POST /api/nets/{netId}/tx/claim
// SPEAK yetkisi veya net'te hail ile verilmiş konuşma izni gerektirir.
func (h *TxHandler) Claim(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	var req models.TransmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	netID := r.PathValue("netId")
	if !CanTransmit(claims, netID, h.hail) {
		pkg.ErrorWithMessage(w, http.StatusForbidden, "not allowed to transmit on this net")
		return
	}
	if req.ClientID != "" && !h.ownsClient(claims.UserID, req.ClientID) {
		pkg.ErrorWithMessage(w, http.StatusForbidden, "client_id does not belong to caller")
		return
	}

	pkg.JSON(w, http.StatusOK, h.arbiter.Claim(r.Context(), netID, claims.UserID, req.ClientID))
}

// Release godoc
// POST /api/nets/{netId}/tx/release
// Kullanıcı sadece kendi tuttuğu authority'yi bırakabilir.
// COMMAND_NET yetkisi holder'dan bağımsız zorla bırakır; client_id verilirse eşleşmelidir.
func (h *TxHandler) Release(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	var req models.TransmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	netID := r.PathValue("netId")
	if claims.Permissions.Has(models.PermCommandNet) {
		released := h.arbiter.Release(r.Context(), netID, req.ClientID)
		pkg.JSON(w, http.StatusOK, map[string]bool{"released": released})
		return
	}

	if req.ClientID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if !h.ownsClient(claims.UserID, req.ClientID) {
		pkg.ErrorWithMessage(w, http.StatusForbidden, "client_id does not belong to caller")
		return
	}

	released := h.arbiter.ReleaseHeld(r.Context(), netID, claims.UserID, req.ClientID)
	pkg.JSON(w, http.StatusOK, map[string]bool{"released": released})
}

func (h *TxHandler) ownsClient(userID, clientID string) bool {
	for _, o := range h.owners {
		if o != nil && o.OwnsClient(userID, clientID) {
			return true
		}
	}
	return false
}

// CanTransmit, kullanıcının net'te authority talep edip edemeyeceğini döner.
// WebSocket tx_claim yolu da aynı kuralı kullanır.
func CanTransmit(claims *models.TokenClaims, netID string, hail services.HailService) bool {
	if claims.Permissions.Has(models.PermSpeak) {
		return true
	}
	return hail != nil && hail.IsSpeaker(netID, claims.UserID)
}
