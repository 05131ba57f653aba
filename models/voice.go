// Package models, voice net oturumları ve transmit authority ile ilgili struct tanımlarını içerir.
//
// VoiceSession ve TransmitAuthority EPHEMERAL'dır; veritabanına entity olarak yazılmaz.
// Session'lar sadece process belleğinde yaşar; authority map'i ise sadece
// cache amaçlı state_cache tablosuna yazılır (yeni açılan instance'lar için).
package models

import "time"

// DisciplineMode, bir oturumun konuşma disiplinini belirtir.
type DisciplineMode string

const (
	// DisciplinePTT: push-to-talk, mikrofon sadece tuş basılıyken açık.
	DisciplinePTT DisciplineMode = "PTT"
	// DisciplineOpen: açık mikrofon (voice activity).
	DisciplineOpen DisciplineMode = "OPEN"
)

// Valid, bilinen bir disiplin modu olup olmadığını döner.
func (m DisciplineMode) Valid() bool {
	return m == DisciplinePTT || m == DisciplineOpen
}

// VoiceSession, bir net'e katılmış tek bir (user, client, net) üçlüsünü temsil eder.
//
// Aynı kullanıcı birden fazla cihaz/tab üzerinden aynı net'te olabilir:
// her biri ayrı ClientID ile ayrı bir session'dır.
type VoiceSession struct {
	ID              string         `json:"id"`
	NetID           string         `json:"net_id"`
	UserID          string         `json:"user_id"`
	Callsign        string         `json:"callsign"`
	ClientID        string         `json:"client_id,omitempty"`
	JoinedAt        time.Time      `json:"joined_at"`
	LastSeenAt      time.Time      `json:"last_seen_at"`
	IsSpeaking      bool           `json:"is_speaking"`
	MicEnabled      bool           `json:"mic_enabled"`
	MonitoredNetIDs []string       `json:"monitored_net_ids"`
	TransmitNetID   *string        `json:"transmit_net_id"`
	DisciplineMode  DisciplineMode `json:"discipline_mode"`
}

// Clone, session'ın derin kopyasını döner.
// Registry dışına pointer sızdırmamak için tüm query'ler kopya döner.
func (s *VoiceSession) Clone() VoiceSession {
	c := *s
	c.MonitoredNetIDs = append([]string(nil), s.MonitoredNetIDs...)
	if s.TransmitNetID != nil {
		tx := *s.TransmitNetID
		c.TransmitNetID = &tx
	}
	return c
}

// VisibleTo, viewerUserID'nin görebileceği kopyayı döner; başka kullanıcının
// session'ında ClientID boşaltılır.
func (s *VoiceSession) VisibleTo(viewerUserID string) VoiceSession {
	c := s.Clone()
	if c.UserID != viewerUserID {
		c.ClientID = ""
	}
	return c
}

// SessionExtras, AddSession'a verilen opsiyonel alanlar.
// nil alanlar "değiştirme" anlamına gelir (merge semantiği).
type SessionExtras struct {
	IsSpeaking      *bool           `json:"is_speaking,omitempty"`
	MicEnabled      *bool           `json:"mic_enabled,omitempty"`
	MonitoredNetIDs []string        `json:"monitored_net_ids,omitempty"`
	TransmitNetID   *string         `json:"transmit_net_id,omitempty"`
	DisciplineMode  *DisciplineMode `json:"discipline_mode,omitempty"`
}

// TopologyUpdate, UpdateTopology için partial update payload'ı.
type TopologyUpdate struct {
	MonitoredNetIDs []string        `json:"monitored_net_ids,omitempty"`
	TransmitNetID   *string         `json:"transmit_net_id,omitempty"`
	DisciplineMode  *DisciplineMode `json:"discipline_mode,omitempty"`
}

// JoinNetRequest, POST /api/nets/{netId}/sessions body'si.
type JoinNetRequest struct {
	ClientID string        `json:"client_id"`
	Callsign string        `json:"callsign"`
	Extras   SessionExtras `json:"extras"`
}

// SpeakingRequest, PATCH /api/sessions/{id}/speaking body'si.
type SpeakingRequest struct {
	IsSpeaking bool `json:"is_speaking"`
}

// TransmitAuthority, bir net'in uplink'i üzerindeki tek yazar kilidi.
//
// Net başına en fazla bir kayıt vardır. ClaimedAt + TTL anından itibaren
// kayıt yok sayılır.
type TransmitAuthority struct {
	NetID     string    `json:"net_id"`
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id,omitempty"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// VisibleTo, viewerUserID'nin görebileceği kopyayı döner. Client ID sadece
// holder'ın kendisine gösterilir; diğer izleyiciler için boşaltılır. nil-safe.
func (a *TransmitAuthority) VisibleTo(viewerUserID string) *TransmitAuthority {
	if a == nil {
		return nil
	}
	cp := *a
	if cp.UserID != viewerUserID {
		cp.ClientID = ""
	}
	return &cp
}

// ExpiredAt, verilen ttl ile kaydın now anında süresinin dolup dolmadığını döner.
// Sınır dahildir: ClaimedAt+ttl anında kayıt artık geçersizdir.
func (a *TransmitAuthority) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(a.ClaimedAt) >= ttl
}

// ClaimResult, claim işleminin sonucu.
// Granted=false ve Authority!=nil → başka biri konuşuyor (kimin konuştuğu UI'da gösterilir).
// Granted=false ve Authority==nil → eksik argüman (precondition).
type ClaimResult struct {
	Granted   bool               `json:"granted"`
	Authority *TransmitAuthority `json:"authority"`
}

// TransmitRequest, tx claim/release body'si.
type TransmitRequest struct {
	ClientID string `json:"client_id"`
}

// VoiceTokenRequest, LiveKit token isteği.
type VoiceTokenRequest struct {
	ClientID string `json:"client_id"`
}

// VoiceTokenResponse, LiveKit token generation yanıtı.
// Client bu bilgilerle doğrudan LiveKit sunucusuna bağlanır.
type VoiceTokenResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
	NetID string `json:"net_id"` // LiveKit room name = net ID
}
