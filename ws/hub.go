package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/akinalp/nexus/pkg/metrics"
)

// EventPublisher, service katmanının event göndermek için kullandığı interface.
// Service'ler Hub'a değil bu interface'e bağımlıdır; testlerde kaydeden bir fake kullanılır.
type EventPublisher interface {
	BroadcastToAll(event Event)
	BroadcastToUser(userID string, event Event)
	BroadcastToUsers(userIDs []string, event Event)
	SendToClient(userID, clientID string, event Event)
	GetOnlineUserIDs() []string
}

// Hub, tüm WebSocket bağlantılarını yönetir.
//
// clients: userID → Client set. Bir kullanıcının birden fazla cihazı/tab'ı olabilir.
type Hub struct {
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	seq atomic.Int64

	logger  *zap.Logger
	metrics *metrics.Metrics

	// Callback'ler main'deki registerHubCallbacks'te set edilir.
	// Hub mutex'i tutulmadan çağrılır. Client komutları bağlantı başına
	// sırayla çalışır; connect ve disconnect ayrı goroutine'dedir.
	onClientConnect    func(info ClientInfo)
	onClientDisconnect func(info ClientInfo)
	onHeartbeat        func(info ClientInfo)
	onNetJoin          func(info ClientInfo, data NetJoinData)
	onNetLeave         func(info ClientInfo, data NetLeaveData)
	onSpeaking         func(info ClientInfo, data SpeakingData)
	onTopology         func(info ClientInfo, data TopologyData)
	onTxClaim          func(info ClientInfo, data TxData)
	onTxRelease        func(info ClientInfo, data TxData)
	onHail             func(info ClientInfo, op string, data HailData)
}

// NewHub, yeni bir Hub oluşturur. m nil olabilir.
func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    m,
	}
}

// Run, Hub'ın register/unregister döngüsü. main'de `go hub.Run()` ile başlatılır.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			return
		}
	}
}

// ─── Callback setter'ları ───

func (h *Hub) OnClientConnect(fn func(info ClientInfo))                  { h.onClientConnect = fn }
func (h *Hub) OnClientDisconnect(fn func(info ClientInfo))               { h.onClientDisconnect = fn }
func (h *Hub) OnHeartbeat(fn func(info ClientInfo))                      { h.onHeartbeat = fn }
func (h *Hub) OnNetJoin(fn func(info ClientInfo, data NetJoinData))      { h.onNetJoin = fn }
func (h *Hub) OnNetLeave(fn func(info ClientInfo, data NetLeaveData))    { h.onNetLeave = fn }
func (h *Hub) OnSpeaking(fn func(info ClientInfo, data SpeakingData))    { h.onSpeaking = fn }
func (h *Hub) OnTopology(fn func(info ClientInfo, data TopologyData))    { h.onTopology = fn }
func (h *Hub) OnTxClaim(fn func(info ClientInfo, data TxData))           { h.onTxClaim = fn }
func (h *Hub) OnTxRelease(fn func(info ClientInfo, data TxData))         { h.onTxRelease = fn }
func (h *Hub) OnHail(fn func(info ClientInfo, op string, data HailData)) { h.onHail = fn }

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	count := len(h.clients[client.userID])
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
	h.logger.Debug("client connected",
		zap.String("user_id", client.userID),
		zap.String("client_id", client.clientID),
		zap.Int("user_connections", count),
	)

	if h.onClientConnect != nil {
		go h.onClientConnect(client.info())
	}
}

// removeClient, client'ı çıkarır ve send channel'ını kapatır.
// Aynı (user, client_id) ile başka bağlantı kalmadıysa disconnect callback'i tetiklenir.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.userID]
	if !ok || !clients[client] {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	close(client.send)

	sameClientLeft := false
	for other := range clients {
		if other.clientID == client.clientID {
			sameClientLeft = true
			break
		}
	}
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
	h.logger.Debug("client disconnected",
		zap.String("user_id", client.userID),
		zap.String("client_id", client.clientID),
	)

	if !sameClientLeft && h.onClientDisconnect != nil {
		info := client.info()
		go func() {
			// Bağlantının önceki komutları cleanup'tan önce tamamlanmalı.
			client.waitOps()
			h.onClientDisconnect(info)
		}()
	}
}

func (h *Hub) marshal(event Event) ([]byte, bool) {
	event.Seq = h.seq.Add(1)
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("op", event.Op), zap.Error(err))
		return nil, false
	}
	return data, true
}

// deliver, send buffer'ı dolu client'ı (yavaş client) unregister eder.
// RLock altında çağrılır; unregister ayrı goroutine'den gönderilir.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		go h.requestUnregister(client)
	}
}

// requestUnregister, Run döngüsüne client'ı çıkarma isteği gönderir.
// Hub kapandıysa bloklamaz.
func (h *Hub) requestUnregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToAll, tüm bağlı client'lara event gönderir.
func (h *Hub) BroadcastToAll(event Event) {
	data, ok := h.marshal(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for client := range clients {
			h.deliver(client, data)
		}
	}
}

// BroadcastToUser, bir kullanıcının tüm bağlantılarına event gönderir.
func (h *Hub) BroadcastToUser(userID string, event Event) {
	h.BroadcastToUsers([]string{userID}, event)
}

// BroadcastToUsers, verilen kullanıcıların tüm bağlantılarına event gönderir.
// Aynı userID birden fazla verilse bile her bağlantıya bir kez gider.
func (h *Hub) BroadcastToUsers(userIDs []string, event Event) {
	if len(userIDs) == 0 {
		return
	}
	data, ok := h.marshal(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		for client := range h.clients[userID] {
			h.deliver(client, data)
		}
	}
}

// SendToClient, tek bir (user, client_id) bağlantısına event gönderir.
func (h *Hub) SendToClient(userID, clientID string, event Event) {
	data, ok := h.marshal(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		if client.clientID == clientID {
			h.deliver(client, data)
		}
	}
}

// GetOnlineUserIDs, bağlı kullanıcı ID'lerini döner.
func (h *Hub) GetOnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	return ids
}

// OwnsClient, kullanıcının clientID ile açık bir bağlantısı varsa true döner.
func (h *Hub) OwnsClient(userID, clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		if client.clientID == clientID {
			return true
		}
	}
	return false
}

// Shutdown, Run döngüsünü durdurur ve tüm bağlantıları kapatır.
func (h *Hub) Shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	h.logger.Info("hub shut down, all connections closed")
}
