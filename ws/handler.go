package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
)

// TokenValidator, WebSocket handler'ın JWT doğrulaması için kullandığı interface.
// services.AuthService bunu karşılar; ws → services import döngüsü olmasın diye burada tanımlı.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// Handler, /ws bağlantı isteklerini işler.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	upgrader       websocket.Upgrader
}

// NewHandler, yeni bir WebSocket handler oluşturur.
// allowedOrigins boşsa tüm origin'lere izin verilir.
func NewHandler(hub *Hub, tokenValidator TokenValidator, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 || allowed["*"] {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// HandleConnection, HTTP bağlantısını WebSocket'e yükseltir.
//
// Tarayıcı WS handshake'inde header gönderemediği için token query'den gelir:
//
//	ws://host/ws?token=JWT&client_id=DEVICE_TAB_ID
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		http.Error(w, "missing client_id", http.StatusBadRequest)
		return
	}

	claims, err := h.tokenValidator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Warn("websocket upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, claims, clientID)

	h.hub.register <- client

	go client.RunOps()
	go client.WritePump()
	client.ReadPump()
}
