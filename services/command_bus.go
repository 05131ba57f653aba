package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg/replicator"
	"github.com/akinalp/nexus/ws"
)

// CommandBus, komuta katmanının sıralı komut snapshot'ını tutar.
//
// Snapshot her zaman bütün olarak değiştirilir (Set); replica'lar arası
// senkronizasyon ve yerel persistence replicator üzerinden yapılır.
type CommandBus interface {
	Set(ctx context.Context, entries []models.CommandEntry) []models.CommandEntry
	Get() []models.CommandEntry
	// Append, entry'yi sona ekler ve sadece son max entry'yi tutar (max <= 0 → sınırsız).
	Append(ctx context.Context, entry models.CommandEntry, max int) []models.CommandEntry
	ForNet(netID string) []models.CommandEntry
}

type commandBus struct {
	mu      sync.RWMutex
	entries []models.CommandEntry

	rep    *replicator.Replicator
	hub    ws.EventPublisher
	logger *zap.Logger
}

// NewCommandBus, constructor. Başlangıç snapshot'ı replicator'dan yüklenir.
func NewCommandBus(rep *replicator.Replicator, hub ws.EventPublisher, logger *zap.Logger) CommandBus {
	b := &commandBus{
		entries: rep.CommandBus(),
		rep:     rep,
		hub:     hub,
		logger:  logger,
	}
	rep.OnCommandBus(b.applyRemote)
	return b
}

func (b *commandBus) Set(ctx context.Context, entries []models.CommandEntry) []models.CommandEntry {
	snapshot := copyEntries(entries)

	b.mu.Lock()
	b.entries = snapshot
	b.mu.Unlock()

	b.rep.SyncCommandBus(ctx, snapshot)
	b.publish(snapshot)

	b.logger.Info("command bus updated", zap.Int("entries", len(snapshot)))
	return copyEntries(snapshot)
}

func (b *commandBus) Get() []models.CommandEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyEntries(b.entries)
}

func (b *commandBus) Append(ctx context.Context, entry models.CommandEntry, max int) []models.CommandEntry {
	b.mu.Lock()
	next := append(copyEntries(b.entries), entry)
	if max > 0 && len(next) > max {
		next = next[len(next)-max:]
	}
	b.entries = next
	snapshot := copyEntries(next)
	b.mu.Unlock()

	b.rep.SyncCommandBus(ctx, snapshot)
	b.publish(snapshot)
	return copyEntries(snapshot)
}

func (b *commandBus) ForNet(netID string) []models.CommandEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.CommandEntry, 0)
	for _, e := range b.entries {
		if e.NetID == netID {
			out = append(out, e)
		}
	}
	return out
}

func (b *commandBus) applyRemote(entries []models.CommandEntry) {
	snapshot := copyEntries(entries)

	b.mu.Lock()
	b.entries = snapshot
	b.mu.Unlock()

	b.publish(snapshot)
}

// publish, command bus tüm bağlı kullanıcılara gider.
func (b *commandBus) publish(entries []models.CommandEntry) {
	if b.hub == nil {
		return
	}
	b.hub.BroadcastToAll(ws.Event{
		Op:   ws.OpCommandBusUpdate,
		Data: ws.CommandBusUpdateData{Entries: copyEntries(entries)},
	})
}

func copyEntries(entries []models.CommandEntry) []models.CommandEntry {
	return append(make([]models.CommandEntry, 0, len(entries)), entries...)
}
