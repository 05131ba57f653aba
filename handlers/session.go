package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/services"
)

// SessionHandler, net oturumu (presence) endpoint'lerini yönetir.
type SessionHandler struct {
	registry services.SessionRegistry
	arbiter  services.TransmitArbiter
	hail     services.HailService
	renewTx  bool
}

// NewSessionHandler, constructor.
// renewTx true ise heartbeat, client'ın o net'teki transmit authority'sini de yeniler.
// Konuşma yetkisini kaybetmiş kullanıcının authority'si yenilenmez.
func NewSessionHandler(registry services.SessionRegistry, arbiter services.TransmitArbiter, hail services.HailService, renewTx bool) *SessionHandler {
	return &SessionHandler{registry: registry, arbiter: arbiter, hail: hail, renewTx: renewTx}
}

// ListNet godoc
// GET /api/nets/{netId}/sessions
// Başka kullanıcıların client_id'leri gizlenir.
func (h *SessionHandler) ListNet(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	sessions := h.registry.GetNetSessions(r.PathValue("netId"))
	for i := range sessions {
		sessions[i] = sessions[i].VisibleTo(claims.UserID)
	}
	pkg.JSON(w, http.StatusOK, sessions)
}

// Join godoc
// POST /api/nets/{netId}/sessions
// Aynı (net, user, client) için tekrar çağrılırsa mevcut session güncellenir.
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	var req models.JoinNetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "client_id is required")
		return
	}

	callsign := req.Callsign
	if callsign == "" {
		callsign = claims.DisplayName()
	}

	session := h.registry.AddSession(r.PathValue("netId"), claims.UserID, callsign, req.ClientID, req.Extras)
	pkg.JSON(w, http.StatusOK, session)
}

// Leave godoc
// DELETE /api/sessions/{id}
// Idempotent: olmayan session için de 200 döner.
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if session, found := h.registry.GetSession(id); found && session.UserID != claims.UserID {
		pkg.ErrorWithMessage(w, http.StatusForbidden, "session belongs to another user")
		return
	}

	_, removed := h.registry.RemoveSession(id)
	pkg.JSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// Heartbeat godoc
// POST /api/sessions/{id}/heartbeat
func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	claims, session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	updated, _ := h.registry.UpdateHeartbeat(session.ID)
	if h.renewTx && CanTransmit(claims, session.NetID, h.hail) {
		h.arbiter.Renew(r.Context(), session.UserID, session.ClientID, session.NetID)
	}
	pkg.JSON(w, http.StatusOK, updated)
}

// Speaking godoc
// PATCH /api/sessions/{id}/speaking
func (h *SessionHandler) Speaking(w http.ResponseWriter, r *http.Request) {
	_, session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req models.SpeakingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, _ := h.registry.UpdateSpeaking(session.ID, req.IsSpeaking)
	pkg.JSON(w, http.StatusOK, updated)
}

// Topology godoc
// PATCH /api/sessions/{id}/topology
// Partial update: verilmeyen alanlar değişmez.
func (h *SessionHandler) Topology(w http.ResponseWriter, r *http.Request) {
	_, session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req models.TopologyUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DisciplineMode != nil && !req.DisciplineMode.Valid() {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "discipline_mode must be PTT or OPEN")
		return
	}

	updated, _ := h.registry.UpdateTopology(session.ID, req)
	pkg.JSON(w, http.StatusOK, updated)
}

// Mine godoc
// GET /api/users/me/sessions
// Kullanıcının tüm cihaz ve net'lerdeki session'ları.
func (h *SessionHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	pkg.JSON(w, http.StatusOK, h.registry.GetUserSessions(claims.UserID))
}

// ownedSession, path'teki session'ı bulur ve çağıranın olduğunu doğrular.
func (h *SessionHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*models.TokenClaims, models.VoiceSession, bool) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return nil, models.VoiceSession{}, false
	}

	session, found := h.registry.GetSession(r.PathValue("id"))
	if !found {
		pkg.ErrorWithMessage(w, http.StatusNotFound, "session not found")
		return nil, models.VoiceSession{}, false
	}
	if session.UserID != claims.UserID {
		pkg.ErrorWithMessage(w, http.StatusForbidden, "session belongs to another user")
		return nil, models.VoiceSession{}, false
	}
	return claims, session, true
}
