package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/pkg/hail"
	"github.com/akinalp/nexus/pkg/metrics"
	"github.com/akinalp/nexus/pkg/ratelimit"
	"github.com/akinalp/nexus/ws"
)

// HailTopic, hail mesajlarının LiveKit data paketlerindeki topic'i.
const HailTopic = "hail"

// HailService, stage mode net'lerde konuşma izni akışını sunucu üzerinden yürütür.
//
// Her net için tek bir otoriter komutan görünümü (hail.Queue) tutulur.
// grant/deny/revoke sadece PermCommandNet yetkisi olan kullanıcılardan kabul
// edilir; yetki JWT claim'lerinden sunucuda doğrulanır. Onaylanan mesajlar
// net dinleyicilerine ws üzerinden ve (açıksa) LiveKit data kanalından gider.
type HailService interface {
	Request(ctx context.Context, actor *models.TokenClaims, netID string) (models.HailSnapshot, error)
	Grant(ctx context.Context, actor *models.TokenClaims, netID, userID string) (models.HailSnapshot, error)
	Deny(ctx context.Context, actor *models.TokenClaims, netID, userID string) (models.HailSnapshot, error)
	Revoke(ctx context.Context, actor *models.TokenClaims, netID, userID string) (models.HailSnapshot, error)
	Snapshot(netID string) models.HailSnapshot
	IsSpeaker(netID, userID string) bool
	// ClearUser, net'ten ayrılan kullanıcıyı pending ve speaker listelerinden çıkarır.
	ClearUser(ctx context.Context, netID, userID string)
	// OnRevoked, konuşma izni geri alınan her kullanıcı için çağrılacak hook ekler.
	// Revoke ve ClearUser ikisi de tetikler.
	OnRevoked(fn func(ctx context.Context, netID, userID string))
}

type hailService struct {
	mu     sync.Mutex
	queues map[string]*hail.Queue

	hooksMu   sync.RWMutex
	onRevoked []func(ctx context.Context, netID, userID string)

	registry SessionRegistry
	hub      ws.EventPublisher
	data     DataSender
	limiter  *ratelimit.Limiter
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewHailService, constructor. data nil ise LiveKit fan-out kapalıdır.
func NewHailService(
	registry SessionRegistry,
	hub ws.EventPublisher,
	data DataSender,
	limiter *ratelimit.Limiter,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) HailService {
	return &hailService{
		queues:   make(map[string]*hail.Queue),
		registry: registry,
		hub:      hub,
		data:     data,
		limiter:  limiter,
		clock:    clk,
		logger:   logger,
		metrics:  m,
	}
}

func (s *hailService) Request(ctx context.Context, actor *models.TokenClaims, netID string) (models.HailSnapshot, error) {
	if actor == nil || actor.UserID == "" {
		return models.HailSnapshot{}, fmt.Errorf("%w: missing identity", pkg.ErrUnauthorized)
	}
	if netID == "" {
		return models.HailSnapshot{}, fmt.Errorf("%w: net id is required", pkg.ErrBadRequest)
	}

	q := s.queue(netID)

	// Tekrarlanan istek sessizce yutulur (dedupe), rate limit'e sayılmaz.
	if q.IsPending(actor.UserID) || q.IsSpeaker(actor.UserID) {
		return q.Snapshot(), nil
	}

	if s.limiter != nil && !s.limiter.Allow(actor.UserID) {
		return models.HailSnapshot{}, fmt.Errorf("%w: retry after %d seconds",
			pkg.ErrRateLimited, s.limiter.RetryAfter(actor.UserID))
	}

	msg := hail.Message{
		Type:      hail.TypeRequest,
		NetID:     netID,
		UserID:    actor.UserID,
		UserName:  actor.DisplayName(),
		Rank:      actor.Rank,
		Timestamp: s.clock.Now().UTC(),
	}
	q.Apply(msg)
	s.fanOut(ctx, msg)
	return q.Snapshot(), nil
}

func (s *hailService) Grant(ctx context.Context, actor *models.TokenClaims, netID, userID string) (models.HailSnapshot, error) {
	q, err := s.commandQueue(actor, netID, userID)
	if err != nil {
		return models.HailSnapshot{}, err
	}
	if q.IsSpeaker(userID) {
		return q.Snapshot(), nil
	}
	return s.emit(ctx, q, actor, hail.TypeGranted, userID), nil
}

func (s *hailService) Deny(ctx context.Context, actor *models.TokenClaims, netID, userID string) (models.HailSnapshot, error) {
	q, err := s.commandQueue(actor, netID, userID)
	if err != nil {
		return models.HailSnapshot{}, err
	}
	if !q.IsPending(userID) {
		return models.HailSnapshot{}, fmt.Errorf("%w: no pending hail for user", pkg.ErrNotFound)
	}
	return s.emit(ctx, q, actor, hail.TypeDenied, userID), nil
}

func (s *hailService) Revoke(ctx context.Context, actor *models.TokenClaims, netID, userID string) (models.HailSnapshot, error) {
	q, err := s.commandQueue(actor, netID, userID)
	if err != nil {
		return models.HailSnapshot{}, err
	}
	if !q.IsSpeaker(userID) {
		return models.HailSnapshot{}, fmt.Errorf("%w: user is not an active speaker", pkg.ErrNotFound)
	}
	return s.emit(ctx, q, actor, hail.TypeRevoked, userID), nil
}

func (s *hailService) Snapshot(netID string) models.HailSnapshot {
	s.mu.Lock()
	q, ok := s.queues[netID]
	s.mu.Unlock()

	if !ok {
		return hail.NewQueue(netID, "", true).Snapshot()
	}
	return q.Snapshot()
}

func (s *hailService) IsSpeaker(netID, userID string) bool {
	s.mu.Lock()
	q, ok := s.queues[netID]
	s.mu.Unlock()
	return ok && q.IsSpeaker(userID)
}

func (s *hailService) ClearUser(ctx context.Context, netID, userID string) {
	s.mu.Lock()
	q, ok := s.queues[netID]
	s.mu.Unlock()
	if !ok {
		return
	}

	// Konuşmacıysa dinleyicilerin speaker listesi güncellensin diye revoke yayınlanır.
	if q.IsSpeaker(userID) {
		s.emit(ctx, q, nil, hail.TypeRevoked, userID)
		return
	}
	q.Forget(userID)
}

func (s *hailService) OnRevoked(fn func(ctx context.Context, netID, userID string)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onRevoked = append(s.onRevoked, fn)
}

// commandQueue, komutan yetkisini ve argümanları doğrular.
func (s *hailService) commandQueue(actor *models.TokenClaims, netID, userID string) (*hail.Queue, error) {
	if actor == nil || !actor.Permissions.Has(models.PermCommandNet) {
		return nil, fmt.Errorf("%w: missing command net permission", pkg.ErrForbidden)
	}
	if netID == "" || userID == "" {
		return nil, fmt.Errorf("%w: net id and user id are required", pkg.ErrBadRequest)
	}
	return s.queue(netID), nil
}

func (s *hailService) emit(ctx context.Context, q *hail.Queue, actor *models.TokenClaims, typ hail.MessageType, userID string) models.HailSnapshot {
	msg := hail.Message{
		Type:      typ,
		NetID:     q.NetID(),
		UserID:    userID,
		Timestamp: s.clock.Now().UTC(),
	}
	if actor != nil {
		msg.SenderID = actor.UserID
	}

	q.Apply(msg)
	s.fanOut(ctx, msg)

	if typ == hail.TypeRevoked {
		s.hooksMu.RLock()
		hooks := append([]func(context.Context, string, string){}, s.onRevoked...)
		s.hooksMu.RUnlock()
		for _, fn := range hooks {
			fn(ctx, msg.NetID, userID)
		}
	}

	s.logger.Info("hail transition",
		zap.String("type", string(typ)),
		zap.String("net_id", msg.NetID),
		zap.String("user_id", userID),
		zap.String("sender_id", msg.SenderID),
	)
	return q.Snapshot()
}

func (s *hailService) queue(netID string) *hail.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[netID]
	if !ok {
		q = hail.NewQueue(netID, "", true)
		s.queues[netID] = q
	}
	return q
}

// fanOut, mesajı net dinleyicilerine ve hedef kullanıcıya iletir.
func (s *hailService) fanOut(ctx context.Context, msg hail.Message) {
	if s.metrics != nil {
		s.metrics.HailTransitions.WithLabelValues(string(msg.Type)).Inc()
	}

	if s.hub != nil {
		var audience []string
		if s.registry != nil {
			audience = s.registry.NetAudience(msg.NetID)
		}
		audience = append(audience, msg.UserID)
		if msg.SenderID != "" {
			audience = append(audience, msg.SenderID)
		}
		s.hub.BroadcastToUsers(audience, ws.Event{Op: string(msg.Type), Data: msg})
	}

	if s.data == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("failed to encode hail message", zap.Error(err))
		return
	}

	// LiveKit fan-out best-effort; ws yolu asıl kanaldır.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.data.SendData(sendCtx, msg.NetID, HailTopic, payload); err != nil {
		s.logger.Warn("hail data packet failed",
			zap.String("net_id", msg.NetID),
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
	}
}
