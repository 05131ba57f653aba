// Package services, coordinator'ın iş mantığını içerir.
//
// Her service bir interface + private implementasyon + NewX constructor üçlüsüdür.
// Dependency'ler constructor'dan inject edilir; WS event'leri ws.EventPublisher
// üzerinden gönderilir.
package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg/metrics"
	"github.com/akinalp/nexus/ws"
)

// SessionRegistry, hangi kullanıcının hangi cihazdan hangi net'te olduğunu
// bellekte tutar.
//
// Hiçbir operasyon hata dönmez: olmayan session'a yapılan update/remove
// no-op'tur (ok=false). Kayıtlar heartbeat gelmezse SweepStale ile temizlenir.
type SessionRegistry interface {
	// AddSession, (netID, userID, clientID) üçlüsü için idempotent join.
	// Mevcut session varsa LastSeenAt yenilenir ve extras merge edilir.
	AddSession(netID, userID, callsign, clientID string, extras models.SessionExtras) models.VoiceSession
	GetSession(id string) (models.VoiceSession, bool)
	FindSession(netID, userID, clientID string) (models.VoiceSession, bool)
	GetNetSessions(netID string) []models.VoiceSession
	GetUserSessions(userID string) []models.VoiceSession
	ListSessions() []models.VoiceSession
	// OwnsClient, kullanıcının clientID ile açılmış en az bir session'ı varsa true döner.
	OwnsClient(userID, clientID string) bool

	UpdateSpeaking(id string, isSpeaking bool) (models.VoiceSession, bool)
	UpdateHeartbeat(id string) (models.VoiceSession, bool)
	// HeartbeatClient, bir bağlantının tüm session'larının LastSeenAt'ini yeniler.
	HeartbeatClient(userID, clientID string) []models.VoiceSession
	UpdateTopology(id string, update models.TopologyUpdate) (models.VoiceSession, bool)
	// SetTransmitNet, authority alan client'ın o net'teki session'ına TransmitNetID yazar.
	SetTransmitNet(netID, userID, clientID string)

	RemoveSession(id string) (models.VoiceSession, bool)
	RemoveClientSessions(userID, clientID string) []models.VoiceSession

	// NetAudience, net'e katılmış veya net'i monitor eden kullanıcıların ID'lerini döner.
	NetAudience(netID string) []string

	// OnSessionRemoved, her silinen session için çağrılacak hook ekler.
	OnSessionRemoved(fn func(session models.VoiceSession))

	// SweepStale, LastSeenAt'i maxIdle'dan eski session'ları siler.
	SweepStale(maxIdle time.Duration) []models.VoiceSession
	// Run, ctx bitene kadar her interval'de SweepStale çalıştırır.
	Run(ctx context.Context, interval, maxIdle time.Duration)
}

type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*models.VoiceSession

	hooksMu sync.RWMutex
	onRemove []func(models.VoiceSession)

	clock   clock.Clock
	hub     ws.EventPublisher
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewSessionRegistry, constructor. hub ve m nil olabilir.
func NewSessionRegistry(clk clock.Clock, hub ws.EventPublisher, logger *zap.Logger, m *metrics.Metrics) SessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*models.VoiceSession),
		clock:    clk,
		hub:      hub,
		logger:   logger,
		metrics:  m,
	}
}

func (r *sessionRegistry) AddSession(netID, userID, callsign, clientID string, extras models.SessionExtras) models.VoiceSession {
	now := r.clock.Now()
	action := ws.ActionUpdate

	r.mu.Lock()
	s := r.findLocked(netID, userID, clientID)
	if s != nil {
		s.LastSeenAt = now
		if callsign != "" {
			s.Callsign = callsign
		}
		mergeExtras(s, extras)
	} else {
		action = ws.ActionJoin
		tx := netID
		s = &models.VoiceSession{
			ID:              uuid.NewString(),
			NetID:           netID,
			UserID:          userID,
			Callsign:        callsign,
			ClientID:        clientID,
			JoinedAt:        now,
			LastSeenAt:      now,
			MonitoredNetIDs: []string{netID},
			TransmitNetID:   &tx,
			DisciplineMode:  models.DisciplinePTT,
		}
		mergeExtras(s, extras)
		r.sessions[s.ID] = s
	}
	out := s.Clone()
	count := len(r.sessions)
	r.mu.Unlock()

	r.setGauge(count)
	if action == ws.ActionJoin {
		r.logger.Info("session joined",
			zap.String("net_id", netID),
			zap.String("user_id", userID),
			zap.String("client_id", clientID),
		)
	}
	r.publish(action, out)
	return out
}

func (r *sessionRegistry) GetSession(id string) (models.VoiceSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return models.VoiceSession{}, false
	}
	return s.Clone(), true
}

func (r *sessionRegistry) FindSession(netID, userID, clientID string) (models.VoiceSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.findLocked(netID, userID, clientID)
	if s == nil {
		return models.VoiceSession{}, false
	}
	return s.Clone(), true
}

func (r *sessionRegistry) GetNetSessions(netID string) []models.VoiceSession {
	return r.filter(func(s *models.VoiceSession) bool { return s.NetID == netID })
}

func (r *sessionRegistry) GetUserSessions(userID string) []models.VoiceSession {
	return r.filter(func(s *models.VoiceSession) bool { return s.UserID == userID })
}

func (r *sessionRegistry) OwnsClient(userID, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.UserID == userID && s.ClientID == clientID {
			return true
		}
	}
	return false
}

func (r *sessionRegistry) ListSessions() []models.VoiceSession {
	return r.filter(func(*models.VoiceSession) bool { return true })
}

func (r *sessionRegistry) UpdateSpeaking(id string, isSpeaking bool) (models.VoiceSession, bool) {
	return r.mutate(id, true, func(s *models.VoiceSession) {
		s.IsSpeaking = isSpeaking
		s.LastSeenAt = r.clock.Now()
	})
}

func (r *sessionRegistry) UpdateHeartbeat(id string) (models.VoiceSession, bool) {
	// Sadece liveness; broadcast edilmez.
	return r.mutate(id, false, func(s *models.VoiceSession) {
		s.LastSeenAt = r.clock.Now()
	})
}

func (r *sessionRegistry) HeartbeatClient(userID, clientID string) []models.VoiceSession {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var touched []models.VoiceSession
	for _, s := range r.sessions {
		if s.UserID == userID && s.ClientID == clientID {
			s.LastSeenAt = now
			touched = append(touched, s.Clone())
		}
	}
	return touched
}

func (r *sessionRegistry) UpdateTopology(id string, update models.TopologyUpdate) (models.VoiceSession, bool) {
	return r.mutate(id, true, func(s *models.VoiceSession) {
		if update.MonitoredNetIDs != nil {
			s.MonitoredNetIDs = dedupe(update.MonitoredNetIDs)
		}
		if update.TransmitNetID != nil {
			tx := *update.TransmitNetID
			s.TransmitNetID = &tx
		}
		if update.DisciplineMode != nil && update.DisciplineMode.Valid() {
			s.DisciplineMode = *update.DisciplineMode
		}
		s.LastSeenAt = r.clock.Now()
	})
}

func (r *sessionRegistry) SetTransmitNet(netID, userID, clientID string) {
	r.mu.Lock()
	s := r.findLocked(netID, userID, clientID)
	if s == nil || (s.TransmitNetID != nil && *s.TransmitNetID == netID) {
		r.mu.Unlock()
		return
	}
	tx := netID
	s.TransmitNetID = &tx
	out := s.Clone()
	r.mu.Unlock()

	r.publish(ws.ActionUpdate, out)
}

func (r *sessionRegistry) RemoveSession(id string) (models.VoiceSession, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return models.VoiceSession{}, false
	}
	delete(r.sessions, id)
	out := s.Clone()
	count := len(r.sessions)
	r.mu.Unlock()

	r.setGauge(count)
	r.removed(out)
	return out, true
}

func (r *sessionRegistry) RemoveClientSessions(userID, clientID string) []models.VoiceSession {
	return r.removeWhere(func(s *models.VoiceSession) bool {
		return s.UserID == userID && s.ClientID == clientID
	})
}

func (r *sessionRegistry) NetAudience(netID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, s := range r.sessions {
		if s.NetID == netID || contains(s.MonitoredNetIDs, netID) {
			seen[s.UserID] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *sessionRegistry) OnSessionRemoved(fn func(session models.VoiceSession)) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

func (r *sessionRegistry) SweepStale(maxIdle time.Duration) []models.VoiceSession {
	now := r.clock.Now()
	swept := r.removeWhere(func(s *models.VoiceSession) bool {
		return now.Sub(s.LastSeenAt) > maxIdle
	})

	if len(swept) > 0 {
		if r.metrics != nil {
			r.metrics.SessionsSwept.Add(float64(len(swept)))
		}
		r.logger.Info("stale sessions swept", zap.Int("count", len(swept)))
	}
	return swept
}

func (r *sessionRegistry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepStale(maxIdle)
		}
	}
}

// ─── Yardımcılar ───

func (r *sessionRegistry) findLocked(netID, userID, clientID string) *models.VoiceSession {
	for _, s := range r.sessions {
		if s.NetID == netID && s.UserID == userID && s.ClientID == clientID {
			return s
		}
	}
	return nil
}

func (r *sessionRegistry) filter(pred func(*models.VoiceSession) bool) []models.VoiceSession {
	r.mu.RLock()
	out := make([]models.VoiceSession, 0)
	for _, s := range r.sessions {
		if pred(s) {
			out = append(out, s.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *sessionRegistry) mutate(id string, broadcast bool, fn func(*models.VoiceSession)) (models.VoiceSession, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return models.VoiceSession{}, false
	}
	fn(s)
	out := s.Clone()
	r.mu.Unlock()

	if broadcast {
		r.publish(ws.ActionUpdate, out)
	}
	return out, true
}

func (r *sessionRegistry) removeWhere(pred func(*models.VoiceSession) bool) []models.VoiceSession {
	r.mu.Lock()
	var removed []models.VoiceSession
	for id, s := range r.sessions {
		if pred(s) {
			removed = append(removed, s.Clone())
			delete(r.sessions, id)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	r.setGauge(count)
	for _, s := range removed {
		r.removed(s)
	}
	return removed
}

// removed, leave event'ini yayınlar ve hook'ları çağırır. Lock dışında çağrılır.
func (r *sessionRegistry) removed(s models.VoiceSession) {
	r.publish(ws.ActionLeave, s)

	r.hooksMu.RLock()
	hooks := append([]func(models.VoiceSession){}, r.onRemove...)
	r.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(s)
	}
}

// publish, session event'ini net'in dinleyicilerine ve session sahibinin
// diğer cihazlarına gönderir. Client ID sadece sahibine gösterilir.
func (r *sessionRegistry) publish(action string, s models.VoiceSession) {
	if r.hub == nil {
		return
	}

	var others []string
	for _, id := range r.NetAudience(s.NetID) {
		if id != s.UserID {
			others = append(others, id)
		}
	}
	if len(others) > 0 {
		r.hub.BroadcastToUsers(others, ws.Event{
			Op:   ws.OpSessionUpdate,
			Data: ws.SessionUpdateData{Action: action, Session: s.VisibleTo("")},
		})
	}
	r.hub.BroadcastToUser(s.UserID, ws.Event{
		Op:   ws.OpSessionUpdate,
		Data: ws.SessionUpdateData{Action: action, Session: s},
	})
}

func (r *sessionRegistry) setGauge(count int) {
	if r.metrics != nil {
		r.metrics.ActiveSessions.Set(float64(count))
	}
}

func mergeExtras(s *models.VoiceSession, e models.SessionExtras) {
	if e.IsSpeaking != nil {
		s.IsSpeaking = *e.IsSpeaking
	}
	if e.MicEnabled != nil {
		s.MicEnabled = *e.MicEnabled
	}
	if e.MonitoredNetIDs != nil {
		s.MonitoredNetIDs = dedupe(e.MonitoredNetIDs)
	}
	if e.TransmitNetID != nil {
		tx := *e.TransmitNetID
		s.TransmitNetID = &tx
	}
	if e.DisciplineMode != nil && e.DisciplineMode.Valid() {
		s.DisciplineMode = *e.DisciplineMode
	}
}

// dedupe, ilk görülme sırasını koruyarak tekrarları ve boş ID'leri atar.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
