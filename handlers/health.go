package handlers

import (
	"net/http"

	"github.com/akinalp/nexus/pkg"
)

// OnlineCounter, bağlı kullanıcıları listeler (ws.Hub).
type OnlineCounter interface {
	GetOnlineUserIDs() []string
}

// HealthHandler, liveness endpoint'i.
type HealthHandler struct {
	instanceID string
	transport  string
	online     OnlineCounter
}

// NewHealthHandler, constructor. online nil olabilir.
func NewHealthHandler(instanceID, transport string, online OnlineCounter) *HealthHandler {
	return &HealthHandler{instanceID: instanceID, transport: transport, online: online}
}

// Check godoc
// GET /api/health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	onlineUsers := 0
	if h.online != nil {
		onlineUsers = len(h.online.GetOnlineUserIDs())
	}

	pkg.JSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"instance_id":  h.instanceID,
		"replicator":   h.transport,
		"online_users": onlineUsers,
	})
}
