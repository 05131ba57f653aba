package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
)

const (
	writeWait = 10 * time.Second

	// pongWait: 3 heartbeat kaçırma (30s × 3) sonrası bağlantı kopmuş sayılır.
	pongWait = 90 * time.Second

	maxMessageSize = 4096

	// sendBufferSize dolarsa client yavaş sayılır ve düşürülür.
	sendBufferSize = 256

	// opsBufferSize dolarsa ReadPump callback'ler yetişene kadar bekler.
	opsBufferSize = 64
)

// Client, tek bir WebSocket bağlantısı.
//
// ReadPump ve WritePump ayrı goroutine'lerde çalışır; gorilla/websocket
// aynı anda tek okuyucu ve tek yazıcı destekler.
//
// Bir bağlantıdan gelen komutlar ops kuyruğunda geliş sırasıyla, tek tek
// çalışır (RunOps). Disconnect callback'i kuyruk boşaldıktan sonra çağrılır.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	clientID string
	claims   *models.TokenClaims
	send     chan []byte

	ops     chan func()
	opsDone chan struct{}
}

// newClient, ops kuyruğu hazır bir Client oluşturur. RunOps ayrıca başlatılmalıdır.
func newClient(hub *Hub, conn *websocket.Conn, claims *models.TokenClaims, clientID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   claims.UserID,
		clientID: clientID,
		claims:   claims,
		send:     make(chan []byte, sendBufferSize),
		ops:      make(chan func(), opsBufferSize),
		opsDone:  make(chan struct{}),
	}
}

// RunOps, ops kuyruğunu kapanana kadar sırayla işler.
func (c *Client) RunOps() {
	defer close(c.opsDone)
	for fn := range c.ops {
		fn()
	}
}

// dispatch, callback'i client'ın kuyruğuna ekler. Kuyruğu olmayan client'ta
// (Hub testleri) ayrı goroutine'de çalışır. Sadece ReadPump goroutine'inden çağrılır.
func (c *Client) dispatch(fn func()) {
	if c.ops == nil {
		go fn()
		return
	}
	c.ops <- fn
}

// waitOps, kuyruktaki tüm callback'ler bitene kadar bekler.
func (c *Client) waitOps() {
	if c.opsDone != nil {
		<-c.opsDone
	}
}

func (c *Client) info() ClientInfo {
	return ClientInfo{UserID: c.userID, ClientID: c.clientID, Claims: c.claims}
}

// ReadPump, bağlantıdan gelen mesajları okur. Bağlantı kapanana kadar bloklar.
func (c *Client) ReadPump() {
	defer func() {
		if c.ops != nil {
			close(c.ops)
		}
		c.hub.requestUnregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Warn("failed to set read deadline", zap.String("user_id", c.userID), zap.Error(err))
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			c.hub.logger.Debug("invalid message", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent, client'tan gelen event'i ilgili callback'e yönlendirir.
// İş mantığı callback'lerde (main package); ws paketi service'lere bağımlı değil.
func (c *Client) handleEvent(event Event) {
	h := c.hub
	info := c.info()

	switch event.Op {
	case OpHeartbeat:
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})
		if h.onHeartbeat != nil {
			c.dispatch(func() { h.onHeartbeat(info) })
		}

	case OpNetJoin:
		var data NetJoinData
		if decodeData(event, &data) && data.NetID != "" && h.onNetJoin != nil {
			c.dispatch(func() { h.onNetJoin(info, data) })
		}

	case OpNetLeave:
		var data NetLeaveData
		if decodeData(event, &data) && data.NetID != "" && h.onNetLeave != nil {
			c.dispatch(func() { h.onNetLeave(info, data) })
		}

	case OpSpeaking:
		var data SpeakingData
		if decodeData(event, &data) && data.NetID != "" && h.onSpeaking != nil {
			c.dispatch(func() { h.onSpeaking(info, data) })
		}

	case OpTopology:
		var data TopologyData
		if decodeData(event, &data) && data.NetID != "" && h.onTopology != nil {
			c.dispatch(func() { h.onTopology(info, data) })
		}

	case OpTxClaim:
		var data TxData
		if decodeData(event, &data) && h.onTxClaim != nil {
			c.dispatch(func() { h.onTxClaim(info, data) })
		}

	case OpTxRelease:
		var data TxData
		if decodeData(event, &data) && data.NetID != "" && h.onTxRelease != nil {
			c.dispatch(func() { h.onTxRelease(info, data) })
		}

	case OpHailRequest, OpHailGrant, OpHailDeny, OpHailRevoke:
		var data HailData
		if decodeData(event, &data) && data.NetID != "" && h.onHail != nil {
			c.dispatch(func() { h.onHail(info, event.Op, data) })
		}

	default:
		h.logger.Debug("unknown op", zap.String("user_id", c.userID), zap.String("op", event.Op))
	}
}

// decodeData, event.Data'yı (any) hedef struct'a çevirir.
// Data JSON'dan map olarak gelir; marshal + unmarshal en güvenli yol.
func decodeData(event Event, dst any) bool {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// sendEvent, bu client'a tek bir event gönderir. Hub'dan çıkarılmış
// client'a (send kapalı) yazılmaz.
func (c *Client) sendEvent(event Event) {
	data, ok := c.hub.marshal(event)
	if !ok {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c.userID][c] {
		return
	}
	c.hub.deliver(c, data)
}

// WritePump, send channel'ındaki mesajları bağlantıya yazar.
// WritePump tek yazıcıdır; conn üzerinde başka goroutine yazmaz.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.write(websocket.TextMessage, message); err != nil {
			return
		}
	}
	// Hub client'ı çıkardı.
	_ = c.write(websocket.CloseMessage, nil)
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
