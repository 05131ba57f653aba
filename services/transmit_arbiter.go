package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg/metrics"
	"github.com/akinalp/nexus/pkg/replicator"
	"github.com/akinalp/nexus/ws"
)

// TransmitArbiter, her net için "aynı anda en fazla bir konuşan" kuralını uygular.
//
// Kilit TTL tabanlıdır: ClaimedAt+ttl anından itibaren kayıt yok sayılır ve
// bir sonraki Claim/Get çağrısında temizlenir. Hiçbir operasyon hata dönmez;
// red ve eksik argüman ClaimResult ile ifade edilir.
//
// Client ID'ler kullanıcı bazında anlamlıdır: kaydı tutan kullanıcıdan farklı
// bir kullanıcı, holder'ın client ID'sini gönderse bile kilidi alamaz.
type TransmitArbiter interface {
	// Claim, reddedilen sonuçta holder'ın client ID'sini gizler.
	Claim(ctx context.Context, netID, userID, clientID string) models.ClaimResult
	// Release, clientID boşsa veya holder'ınkiyle eşleşiyorsa kaydı siler.
	// Sahibi olmayan client'ın isteği sessizce yok sayılır. Silindiyse true döner.
	// Kullanıcı kontrolü yapmaz; sadece command yetkili zorla bırakma için kullanılır.
	Release(ctx context.Context, netID, clientID string) bool
	// ReleaseHeld, kaydı sadece userID tutuyorsa siler. clientID boş değilse
	// holder'ın client'ı ile de eşleşmelidir.
	ReleaseHeld(ctx context.Context, netID, userID, clientID string) bool
	Get(netID string) *models.TransmitAuthority
	List() []models.TransmitAuthority
	// Renew, client'ın tuttuğu authority'lerin ClaimedAt'ini yeniler.
	// netID boşsa client'ın tüm net'lerindeki kayıtlar yenilenir.
	Renew(ctx context.Context, userID, clientID, netID string) int
	// ReleaseClient, bağlantısı kopan client'ın tüm authority'lerini bırakır.
	ReleaseClient(ctx context.Context, userID, clientID string) int
}

type transmitArbiter struct {
	mu          sync.Mutex
	authorities map[string]models.TransmitAuthority

	ttl      time.Duration
	clock    clock.Clock
	rep      *replicator.Replicator
	registry SessionRegistry
	hub      ws.EventPublisher
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewTransmitArbiter, constructor. Başlangıç state'i replicator'ın store'dan
// yüklediği authority map'idir; süresi dolmuş kayıtlar ilk sorguda temizlenir.
// hub ve m nil olabilir.
func NewTransmitArbiter(
	clk clock.Clock,
	ttl time.Duration,
	rep *replicator.Replicator,
	registry SessionRegistry,
	hub ws.EventPublisher,
	logger *zap.Logger,
	m *metrics.Metrics,
) TransmitArbiter {
	a := &transmitArbiter{
		authorities: rep.Authorities(),
		ttl:         ttl,
		clock:       clk,
		rep:         rep,
		registry:    registry,
		hub:         hub,
		logger:      logger,
		metrics:     m,
	}
	rep.OnAuthority(a.applyRemote)
	a.setGauge(len(a.authorities))
	return a
}

func (a *transmitArbiter) Claim(ctx context.Context, netID, userID, clientID string) models.ClaimResult {
	if netID == "" || userID == "" || clientID == "" {
		a.countClaim(metrics.ClaimInvalid)
		return models.ClaimResult{Granted: false, Authority: nil}
	}

	now := a.clock.Now()

	a.mu.Lock()
	expired := a.pruneLocked(now)

	if cur, ok := a.authorities[netID]; ok && cur.UserID != userID {
		holder := cur
		count := len(a.authorities)
		a.mu.Unlock()

		a.setGauge(count)
		a.announceExpired(ctx, expired)
		a.countClaim(metrics.ClaimDenied)
		a.logger.Debug("transmit claim denied",
			zap.String("net_id", netID),
			zap.String("user_id", userID),
			zap.String("holder_user_id", holder.UserID),
		)
		return models.ClaimResult{Granted: false, Authority: holder.VisibleTo(userID)}
	}

	granted := models.TransmitAuthority{
		NetID:     netID,
		UserID:    userID,
		ClientID:  clientID,
		ClaimedAt: now,
	}
	a.authorities[netID] = granted
	count := len(a.authorities)
	a.mu.Unlock()

	a.setGauge(count)
	a.announceExpired(ctx, expired)
	a.countClaim(metrics.ClaimGranted)

	out := granted
	a.rep.SyncAuthority(ctx, netID, &out)
	if a.registry != nil {
		a.registry.SetTransmitNet(netID, userID, clientID)
	}
	a.publish(netID, &out, userID)

	a.logger.Debug("transmit claim granted",
		zap.String("net_id", netID),
		zap.String("user_id", userID),
		zap.String("client_id", clientID),
	)
	result := granted
	return models.ClaimResult{Granted: true, Authority: &result}
}

func (a *transmitArbiter) Release(ctx context.Context, netID, clientID string) bool {
	return a.release(ctx, netID, func(cur models.TransmitAuthority) bool {
		return clientID == "" || cur.ClientID == clientID
	})
}

func (a *transmitArbiter) ReleaseHeld(ctx context.Context, netID, userID, clientID string) bool {
	if userID == "" {
		return false
	}
	return a.release(ctx, netID, func(cur models.TransmitAuthority) bool {
		return cur.UserID == userID && (clientID == "" || cur.ClientID == clientID)
	})
}

func (a *transmitArbiter) release(ctx context.Context, netID string, match func(models.TransmitAuthority) bool) bool {
	a.mu.Lock()
	cur, ok := a.authorities[netID]
	if !ok || !match(cur) {
		a.mu.Unlock()
		return false
	}
	delete(a.authorities, netID)
	count := len(a.authorities)
	a.mu.Unlock()

	a.setGauge(count)
	if a.metrics != nil {
		a.metrics.TxReleases.Inc()
	}
	a.rep.SyncAuthority(ctx, netID, nil)
	a.publish(netID, nil, cur.UserID)
	return true
}

func (a *transmitArbiter) Get(netID string) *models.TransmitAuthority {
	a.mu.Lock()
	expired := a.pruneLocked(a.clock.Now())
	cur, ok := a.authorities[netID]
	count := len(a.authorities)
	a.mu.Unlock()

	a.setGauge(count)
	a.announceExpired(context.Background(), expired)
	if !ok {
		return nil
	}
	return &cur
}

func (a *transmitArbiter) List() []models.TransmitAuthority {
	a.mu.Lock()
	expired := a.pruneLocked(a.clock.Now())
	out := make([]models.TransmitAuthority, 0, len(a.authorities))
	for _, cur := range a.authorities {
		out = append(out, cur)
	}
	count := len(a.authorities)
	a.mu.Unlock()

	a.setGauge(count)
	a.announceExpired(context.Background(), expired)
	sort.Slice(out, func(i, j int) bool { return out[i].NetID < out[j].NetID })
	return out
}

func (a *transmitArbiter) Renew(ctx context.Context, userID, clientID, netID string) int {
	now := a.clock.Now()

	a.mu.Lock()
	expired := a.pruneLocked(now)
	var renewed []models.TransmitAuthority
	for id, cur := range a.authorities {
		if cur.UserID != userID || cur.ClientID != clientID {
			continue
		}
		if netID != "" && id != netID {
			continue
		}
		cur.ClaimedAt = now
		a.authorities[id] = cur
		renewed = append(renewed, cur)
	}
	count := len(a.authorities)
	a.mu.Unlock()

	a.setGauge(count)
	a.announceExpired(ctx, expired)
	for i := range renewed {
		a.rep.SyncAuthority(ctx, renewed[i].NetID, &renewed[i])
	}
	return len(renewed)
}

func (a *transmitArbiter) ReleaseClient(ctx context.Context, userID, clientID string) int {
	a.mu.Lock()
	var released []models.TransmitAuthority
	for id, cur := range a.authorities {
		if cur.UserID == userID && cur.ClientID == clientID {
			released = append(released, cur)
			delete(a.authorities, id)
		}
	}
	count := len(a.authorities)
	a.mu.Unlock()

	a.setGauge(count)
	for _, cur := range released {
		if a.metrics != nil {
			a.metrics.TxReleases.Inc()
		}
		a.rep.SyncAuthority(ctx, cur.NetID, nil)
		a.publish(cur.NetID, nil, cur.UserID)
	}
	return len(released)
}

// applyRemote, başka bir replica'daki değişikliği yerel map'e yazar ve
// bu instance'a bağlı dinleyicilere yayınlar. Tekrar replicate edilmez.
func (a *transmitArbiter) applyRemote(netID string, authority *models.TransmitAuthority) {
	a.mu.Lock()
	prev, had := a.authorities[netID]
	if authority == nil {
		delete(a.authorities, netID)
	} else {
		a.authorities[netID] = *authority
	}
	count := len(a.authorities)
	a.mu.Unlock()

	a.setGauge(count)

	holder := ""
	if authority != nil {
		holder = authority.UserID
	} else if had {
		holder = prev.UserID
	}
	a.publish(netID, authority, holder)
}

// pruneLocked, süresi dolmuş tüm kayıtları siler ve döner. a.mu tutulurken çağrılır.
func (a *transmitArbiter) pruneLocked(now time.Time) []models.TransmitAuthority {
	var expired []models.TransmitAuthority
	for id, cur := range a.authorities {
		if cur.ExpiredAt(now, a.ttl) {
			expired = append(expired, cur)
			delete(a.authorities, id)
		}
	}
	return expired
}

// announceExpired, prune edilen kayıtları replicate eder ve dinleyicilere bildirir.
func (a *transmitArbiter) announceExpired(ctx context.Context, expired []models.TransmitAuthority) {
	for _, cur := range expired {
		if a.metrics != nil {
			a.metrics.TxExpired.Inc()
		}
		a.logger.Debug("transmit authority expired",
			zap.String("net_id", cur.NetID),
			zap.String("user_id", cur.UserID),
		)
		a.rep.SyncAuthority(ctx, cur.NetID, nil)
		a.publish(cur.NetID, nil, cur.UserID)
	}
}

// publish, değişikliği net dinleyicilerine ve holder'a yayınlar. Holder tam
// kaydı alır; diğerleri client ID'si gizlenmiş kopyayı görür.
func (a *transmitArbiter) publish(netID string, authority *models.TransmitAuthority, holderUserID string) {
	if a.hub == nil {
		return
	}

	var others []string
	if a.registry != nil {
		for _, id := range a.registry.NetAudience(netID) {
			if id != holderUserID {
				others = append(others, id)
			}
		}
	}
	if len(others) > 0 {
		a.hub.BroadcastToUsers(others, ws.Event{
			Op:   ws.OpTxAuthorityUpdate,
			Data: ws.TxAuthorityUpdateData{NetID: netID, Authority: authority.VisibleTo("")},
		})
	}
	if holderUserID != "" {
		a.hub.BroadcastToUser(holderUserID, ws.Event{
			Op:   ws.OpTxAuthorityUpdate,
			Data: ws.TxAuthorityUpdateData{NetID: netID, Authority: authority.VisibleTo(holderUserID)},
		})
	}
}

func (a *transmitArbiter) countClaim(result string) {
	if a.metrics != nil {
		a.metrics.TxClaims.WithLabelValues(result).Inc()
	}
}

func (a *transmitArbiter) setGauge(count int) {
	if a.metrics != nil {
		a.metrics.HeldAuthorities.Set(float64(count))
	}
}
