package models

import (
	"fmt"
	"strings"
	"time"
)

// PatchStatus, bir net patch'inin yaşam döngüsü durumu.
type PatchStatus string

const (
	PatchStatusActive     PatchStatus = "active"
	PatchStatusTerminated PatchStatus = "terminated"
)

// NetPatch, iki net arasındaki ses köprüsü.
//
// IsBidirectional=false → sadece Source → Destination yönünde ses akar.
// Terminated bir patch tekrar aktif edilemez; yeni patch oluşturulur.
type NetPatch struct {
	ID               string      `json:"id"`
	EventID          *string     `json:"event_id"`
	SourceNetID      string      `json:"source_net_id"`
	DestinationNetID string      `json:"destination_net_id"`
	IsBidirectional  bool        `json:"is_bidirectional"`
	Status           PatchStatus `json:"status"`
	CreatedBy        string      `json:"created_by"`
	CreatedAt        time.Time   `json:"created_at"`
	TerminatedAt     *time.Time  `json:"terminated_at"`
}

// CreatePatchRequest, patch oluşturma (veya dry-run kontrol) isteği.
type CreatePatchRequest struct {
	EventID          string `json:"event_id"`
	SourceNetID      string `json:"source_net_id"`
	DestinationNetID string `json:"destination_net_id"`
	IsBidirectional  bool   `json:"is_bidirectional"`
}

// Validate, zorunlu alanları kontrol eder. Loop kontrolü burada YAPILMAZ:
// o mevcut aktif patch'lere bağlıdır ve PatchService'te yapılır.
func (r *CreatePatchRequest) Validate() error {
	r.SourceNetID = strings.TrimSpace(r.SourceNetID)
	r.DestinationNetID = strings.TrimSpace(r.DestinationNetID)
	r.EventID = strings.TrimSpace(r.EventID)

	if r.SourceNetID == "" || r.DestinationNetID == "" {
		return fmt.Errorf("source_net_id and destination_net_id are required")
	}
	return nil
}

// PatchCheckResult, dry-run loop kontrolünün sonucu.
// UI bu sonuçla aktivasyon öncesi uyarı gösterir.
type PatchCheckResult struct {
	Loop   bool   `json:"loop"`
	Reason string `json:"reason,omitempty"`
}
