// Package hail: stage mode net'ler için request-to-speak state machine'i.
//
// Her katılımcı kendi Queue'sunu tutar ve net'in data channel'ından gelen
// mesajları Apply ile sırayla uygular. Merkezi bir state yoktur; her görünüm
// o ana kadar gözlemlenen mesaj akışından yeniden kurulur.
//
// Katılımcının kendi durumu:
//
//	none → pending → granted | denied
//	granted → (revoked) → none
//
// Komutan görünümü (commander=true) ayrıca bekleyen istek listesini tutar.
// Tüm görünümler aktif konuşmacı kümesini tutar.
package hail

import (
	"sort"
	"sync"
	"time"

	"github.com/akinalp/nexus/models"
)

// MessageType, data channel üzerinden taşınan hail mesaj tipi.
type MessageType string

const (
	TypeRequest MessageType = "hail_request"
	TypeGranted MessageType = "hail_granted"
	TypeDenied  MessageType = "hail_denied"
	TypeRevoked MessageType = "hail_revoked"
)

// Message, hail protokolünün tek mesajı. JSON olarak taşınır.
type Message struct {
	Type      MessageType `json:"type"`
	NetID     string      `json:"net_id"`
	UserID    string      `json:"user_id"`
	UserName  string      `json:"user_name,omitempty"`
	Rank      string      `json:"rank,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	// SenderID, grant/deny/revoke mesajını gönderen komutanın ID'si.
	SenderID string `json:"sender_id,omitempty"`
}

// Transition, Apply sonrası yerel katılımcının durum değişikliği.
// Host UI EnableTransmit/DisableTransmit sinyalleriyle mikrofonu açar/kapar.
type Transition struct {
	From            models.HailState
	To              models.HailState
	EnableTransmit  bool
	DisableTransmit bool
}

// Changed, yerel durumun değişip değişmediğini döner.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Queue, tek bir net için bir katılımcının hail görünümü.
type Queue struct {
	mu        sync.Mutex
	netID     string
	self      string
	commander bool

	state    models.HailState
	pending  []models.HailRequest
	speakers map[string]bool
}

// NewQueue, self kullanıcısı için yeni bir görünüm oluşturur.
// Sunucu tarafı otoriter görünüm için self boş string verilir.
func NewQueue(netID, self string, commander bool) *Queue {
	return &Queue{
		netID:     netID,
		self:      self,
		commander: commander,
		state:     models.HailStateNone,
		speakers:  make(map[string]bool),
	}
}

// NetID, görünümün ait olduğu net'i döner.
func (q *Queue) NetID() string { return q.netID }

// IsCommander, görünümün komutan görünümü olup olmadığını döner.
func (q *Queue) IsCommander() bool { return q.commander }

// Request, self için bir hail_request mesajı üretir ve yerel durumu pending yapar.
// Zaten pending veya granted ise ok=false döner; istek sadece bir kez gönderilir.
func (q *Queue) Request(userName, rank string, now time.Time) (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.self == "" || q.state == models.HailStatePending || q.state == models.HailStateGranted {
		return Message{}, false
	}
	q.state = models.HailStatePending

	return Message{
		Type:      TypeRequest,
		NetID:     q.netID,
		UserID:    q.self,
		UserName:  userName,
		Rank:      rank,
		Timestamp: now,
	}, true
}

// Apply, data channel'dan gelen bir mesajı uygular.
// Başka net'e ait veya userID'siz mesajlar yok sayılır.
func (q *Queue) Apply(msg Message) Transition {
	q.mu.Lock()
	defer q.mu.Unlock()

	tr := Transition{From: q.state, To: q.state}
	if msg.UserID == "" || (msg.NetID != "" && msg.NetID != q.netID) {
		return tr
	}
	isSelf := q.self != "" && msg.UserID == q.self

	switch msg.Type {
	case TypeRequest:
		if q.commander && q.indexPending(msg.UserID) < 0 {
			q.pending = append(q.pending, models.HailRequest{
				UserID:    msg.UserID,
				UserName:  msg.UserName,
				Rank:      msg.Rank,
				Timestamp: msg.Timestamp,
			})
		}
		if isSelf && (q.state == models.HailStateNone || q.state == models.HailStateDenied) {
			q.state = models.HailStatePending
		}

	case TypeGranted:
		q.removePending(msg.UserID)
		if isSelf {
			if q.state != models.HailStateGranted {
				q.state = models.HailStateGranted
				tr.EnableTransmit = true
			}
		} else {
			q.speakers[msg.UserID] = true
		}

	case TypeDenied:
		q.removePending(msg.UserID)
		if isSelf && (q.state == models.HailStatePending || q.state == models.HailStateNone) {
			q.state = models.HailStateDenied
		}

	case TypeRevoked:
		delete(q.speakers, msg.UserID)
		// Grant'ten önce gelen revoke (yeniden sıralama) sessizce düşer.
		if isSelf && q.state == models.HailStateGranted {
			q.state = models.HailStateNone
			tr.DisableTransmit = true
		}
	}

	tr.To = q.state
	return tr
}

// State, self'in mevcut hail durumunu döner.
func (q *Queue) State() models.HailState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Pending, bekleyen istekleri geliş sırasıyla döner (kopya).
func (q *Queue) Pending() []models.HailRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.HailRequest{}, q.pending...)
}

// IsPending, userID'nin bekleyen listede olup olmadığını döner.
func (q *Queue) IsPending(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexPending(userID) >= 0
}

// ActiveSpeakers, aktif konuşmacıları sıralı döner.
func (q *Queue) ActiveSpeakers() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, 0, len(q.speakers))
	for id := range q.speakers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsSpeaker, userID'nin aktif konuşmacı olup olmadığını döner.
func (q *Queue) IsSpeaker(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speakers[userID]
}

// Forget, bir kullanıcıyı pending ve speaker listelerinden siler
// (net'ten ayrılma). Self durumu değişmez.
func (q *Queue) Forget(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removePending(userID)
	delete(q.speakers, userID)
}

// Snapshot, komutan görünümünü models.HailSnapshot olarak döner.
func (q *Queue) Snapshot() models.HailSnapshot {
	return models.HailSnapshot{
		NetID:          q.netID,
		Pending:        q.Pending(),
		ActiveSpeakers: q.ActiveSpeakers(),
	}
}

func (q *Queue) indexPending(userID string) int {
	for i, r := range q.pending {
		if r.UserID == userID {
			return i
		}
	}
	return -1
}

func (q *Queue) removePending(userID string) {
	if i := q.indexPending(userID); i >= 0 {
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
	}
}
