package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// VoiceNet, bir operasyon/etkinlik için tanımlanmış ses ağını (net) temsil eder.
// DB'deki "voice_nets" tablosunun Go karşılığı.
//
// StageMode=true olan net'lerde katılımcılar varsayılan olarak sadece dinler;
// konuşmak için hail (request-to-speak) akışından geçmeleri gerekir.
type VoiceNet struct {
	ID        string    `json:"id"`
	EventID   *string   `json:"event_id"` // Nullable; etkinlikten bağımsız kalıcı net'ler olabilir
	Code      string    `json:"code"`     // Kısa çağrı kodu (ör: "COMMAND", "ALPHA-1")
	Label     string    `json:"label"`
	StageMode bool      `json:"stage_mode"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNetRequest, yeni net oluşturma isteği.
type CreateNetRequest struct {
	EventID   string `json:"event_id"`
	Code      string `json:"code"`
	Label     string `json:"label"`
	StageMode bool   `json:"stage_mode"`
	Priority  int    `json:"priority"`
}

// Validate, CreateNetRequest alanlarını normalize eder ve kontrol eder.
func (r *CreateNetRequest) Validate() error {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	r.Label = strings.TrimSpace(r.Label)
	r.EventID = strings.TrimSpace(r.EventID)

	if n := utf8.RuneCountInString(r.Code); n < 1 || n > 32 {
		return fmt.Errorf("net code must be between 1 and 32 characters")
	}
	if utf8.RuneCountInString(r.Label) > 100 {
		return fmt.Errorf("net label must be at most 100 characters")
	}
	if r.Priority < 0 {
		return fmt.Errorf("net priority must not be negative")
	}
	return nil
}
