package repository

import (
	"context"

	"github.com/akinalp/nexus/models"
)

// VoiceNetRepository, voice net tanımları için data access interface'i.
type VoiceNetRepository interface {
	Create(ctx context.Context, net *models.VoiceNet) error
	GetByID(ctx context.Context, id string) (*models.VoiceNet, error)
	// List, eventID boşsa tüm net'leri döner. Sıralama: priority DESC, code ASC.
	List(ctx context.Context, eventID string) ([]models.VoiceNet, error)
}
