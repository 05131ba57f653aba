package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/services"
)

// VoiceHandler, ses odası token endpoint'ini yönetir.
type VoiceHandler struct {
	tokens services.VoiceTokenService
}

// NewVoiceHandler, constructor.
func NewVoiceHandler(tokens services.VoiceTokenService) *VoiceHandler {
	return &VoiceHandler{tokens: tokens}
}

// Token godoc
// POST /api/nets/{netId}/voice-token
// Client bu token ile doğrudan LiveKit sunucusuna bağlanır (room = net ID).
func (h *VoiceHandler) Token(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return
	}

	var req models.VoiceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.tokens.GenerateToken(claims, r.PathValue("netId"), req.ClientID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, resp)
}
