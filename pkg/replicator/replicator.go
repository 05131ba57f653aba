// Package replicator, aynı cihazdaki (veya aynı cluster'daki) coordinator
// instance'ları arasında transmit authority ve command bus state'ini senkron tutar.
//
// Tek bir soyutlama + construction sırasında seçilen Transport:
// LocalBus (in-process), RedisTransport, NATSTransport veya Noop.
// State ayrıca yerel Store'a yazılır; yeni açılan instance başlarken
// son bilinen state'i buradan yükler.
//
// Best-effort: store ve transport hataları loglanır ve yutulur.
// Caller'a hiçbir zaman hata dönmez.
package replicator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/pkg/metrics"
)

// Store key'leri.
const (
	KeyAuthorityMap = "tx_authority_map"
	KeyCommandBus   = "command_bus_snapshot"
)

// Store, yerel kalıcı key-value deposu.
// Olmayan key için pkg.ErrNotFound döner.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Replicator, authority map'i ve command bus snapshot'ını replica'lar arasında taşır.
type Replicator struct {
	origin    string
	transport Transport
	store     Store
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu          sync.RWMutex
	authorities map[string]models.TransmitAuthority
	commandBus  []models.CommandEntry

	handlersMu         sync.RWMutex
	authorityHandlers  []func(netID string, authority *models.TransmitAuthority)
	commandBusHandlers []func(entries []models.CommandEntry)
}

// New, replicator'ı oluşturur ve persist edilmiş state'i eager olarak yükler.
// origin bu instance'ın benzersiz ID'sidir; kendi mesajları geri geldiğinde yok sayılır.
// m nil olabilir.
func New(origin string, transport Transport, store Store, logger *zap.Logger, m *metrics.Metrics) *Replicator {
	if transport == nil {
		transport = Noop{}
	}
	r := &Replicator{
		origin:      origin,
		transport:   transport,
		store:       store,
		logger:      logger,
		metrics:     m,
		authorities: make(map[string]models.TransmitAuthority),
	}
	r.load(context.Background())
	return r
}

// Origin, bu instance'ın replica ID'sini döner.
func (r *Replicator) Origin() string { return r.origin }

// Start, transport'a abone olur. ctx iptal edildiğinde abonelik biter.
func (r *Replicator) Start(ctx context.Context) {
	if err := r.transport.Subscribe(ctx, r.handle); err != nil {
		r.logger.Warn("replicator subscribe failed, running without remote sync", zap.Error(err))
	}
}

// Close, transport'u kapatır.
func (r *Replicator) Close() {
	if err := r.transport.Close(); err != nil {
		r.logger.Warn("replicator transport close failed", zap.Error(err))
	}
}

// OnAuthority, başka bir replica'dan gelen authority değişikliği için handler ekler.
// authority nil ise net'in authority'si kaldırılmıştır.
func (r *Replicator) OnAuthority(fn func(netID string, authority *models.TransmitAuthority)) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.authorityHandlers = append(r.authorityHandlers, fn)
}

// OnCommandBus, başka bir replica'dan gelen command bus snapshot'ı için handler ekler.
func (r *Replicator) OnCommandBus(fn func(entries []models.CommandEntry)) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.commandBusHandlers = append(r.commandBusHandlers, fn)
}

// Authorities, yüklenmiş/senkron authority map'inin kopyasını döner.
func (r *Replicator) Authorities() map[string]models.TransmitAuthority {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.TransmitAuthority, len(r.authorities))
	for k, v := range r.authorities {
		out[k] = v
	}
	return out
}

// CommandBus, son bilinen command bus snapshot'ının kopyasını döner.
func (r *Replicator) CommandBus() []models.CommandEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.CommandEntry{}, r.commandBus...)
}

// SyncAuthority, yerel bir authority değişikliğini persist eder ve yayınlar.
// authority nil ise release anlamına gelir.
func (r *Replicator) SyncAuthority(ctx context.Context, netID string, authority *models.TransmitAuthority) {
	r.applyAuthority(ctx, netID, authority)
	r.publish(ctx, Message{
		Type:      TypeAuthoritySync,
		Origin:    r.origin,
		NetID:     netID,
		Authority: authority,
	})
}

// SyncCommandBus, yeni command bus snapshot'ını persist eder ve yayınlar.
func (r *Replicator) SyncCommandBus(ctx context.Context, entries []models.CommandEntry) {
	r.applyCommandBus(ctx, entries)
	r.publish(ctx, Message{
		Type:    TypeCommandBusSync,
		Origin:  r.origin,
		Entries: entries,
	})
}

func (r *Replicator) publish(ctx context.Context, msg Message) {
	if err := r.transport.Publish(ctx, msg); err != nil {
		r.logger.Warn("replicator publish failed",
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
		r.count(metrics.DirectionDropped, msg.Type)
		return
	}
	r.count(metrics.DirectionSent, msg.Type)
}

// handle, transport'tan gelen mesajı uygular.
func (r *Replicator) handle(msg Message) {
	if msg.Origin == r.origin {
		return
	}
	ctx := context.Background()

	switch msg.Type {
	case TypeAuthoritySync:
		if msg.NetID == "" {
			r.count(metrics.DirectionDropped, msg.Type)
			return
		}
		r.applyAuthority(ctx, msg.NetID, msg.Authority)

		r.handlersMu.RLock()
		handlers := append([]func(string, *models.TransmitAuthority){}, r.authorityHandlers...)
		r.handlersMu.RUnlock()
		for _, fn := range handlers {
			fn(msg.NetID, msg.Authority)
		}

	case TypeCommandBusSync:
		r.applyCommandBus(ctx, msg.Entries)

		r.handlersMu.RLock()
		handlers := append([]func([]models.CommandEntry){}, r.commandBusHandlers...)
		r.handlersMu.RUnlock()
		for _, fn := range handlers {
			fn(append([]models.CommandEntry{}, msg.Entries...))
		}

	default:
		r.count(metrics.DirectionDropped, msg.Type)
		return
	}
	r.count(metrics.DirectionReceived, msg.Type)
}

func (r *Replicator) applyAuthority(ctx context.Context, netID string, authority *models.TransmitAuthority) {
	r.mu.Lock()
	if authority == nil {
		delete(r.authorities, netID)
	} else {
		r.authorities[netID] = *authority
	}
	data, err := json.Marshal(r.authorities)
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("failed to encode authority map", zap.Error(err))
		return
	}
	r.persist(ctx, KeyAuthorityMap, data)
}

func (r *Replicator) applyCommandBus(ctx context.Context, entries []models.CommandEntry) {
	r.mu.Lock()
	r.commandBus = append([]models.CommandEntry{}, entries...)
	data, err := json.Marshal(r.commandBus)
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("failed to encode command bus", zap.Error(err))
		return
	}
	r.persist(ctx, KeyCommandBus, data)
}

func (r *Replicator) persist(ctx context.Context, key string, data []byte) {
	if r.store == nil {
		return
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		r.logger.Warn("failed to persist replicated state", zap.String("key", key), zap.Error(err))
	}
}

// load, store'daki son bilinen state'i belleğe alır.
func (r *Replicator) load(ctx context.Context) {
	if r.store == nil {
		return
	}

	if data, ok := r.read(ctx, KeyAuthorityMap); ok {
		var authorities map[string]models.TransmitAuthority
		if err := json.Unmarshal(data, &authorities); err != nil {
			r.logger.Warn("discarding corrupt authority map", zap.Error(err))
		} else {
			for netID, a := range authorities {
				r.authorities[netID] = a
			}
		}
	}

	if data, ok := r.read(ctx, KeyCommandBus); ok {
		var entries []models.CommandEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			r.logger.Warn("discarding corrupt command bus snapshot", zap.Error(err))
		} else {
			r.commandBus = entries
		}
	}
}

func (r *Replicator) read(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkg.ErrNotFound) {
			r.logger.Warn("failed to read replicated state", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (r *Replicator) count(direction string, typ MessageType) {
	if r.metrics == nil {
		return
	}
	r.metrics.ReplicatorMessages.WithLabelValues(direction, string(typ)).Inc()
}
