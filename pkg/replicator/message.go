package replicator

import "github.com/akinalp/nexus/models"

// MessageType, replica'lar arası senkron mesajının tipi.
type MessageType string

const (
	TypeAuthoritySync  MessageType = "tx-authority-sync"
	TypeCommandBusSync MessageType = "command-bus-sync"
)

// Message, transport üzerinden JSON olarak taşınan senkron mesajı.
//
// TypeAuthoritySync: NetID + Authority (nil = release).
// TypeCommandBusSync: Entries (tüm snapshot).
type Message struct {
	Type      MessageType               `json:"type"`
	Origin    string                    `json:"origin"`
	NetID     string                    `json:"net_id,omitempty"`
	Authority *models.TransmitAuthority `json:"authority,omitempty"`
	Entries   []models.CommandEntry     `json:"entries,omitempty"`
}
