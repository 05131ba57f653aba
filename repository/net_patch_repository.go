package repository

import (
	"context"
	"time"

	"github.com/akinalp/nexus/models"
)

// NetPatchRepository, net patch'leri için data access interface'i.
type NetPatchRepository interface {
	Create(ctx context.Context, patch *models.NetPatch) error
	GetByID(ctx context.Context, id string) (*models.NetPatch, error)
	// ListActive, eventID boşsa tüm event'lerin aktif patch'lerini döner.
	ListActive(ctx context.Context, eventID string) ([]models.NetPatch, error)
	// ListByEvent, bir event'in tüm patch'lerini (terminated dahil) döner.
	ListByEvent(ctx context.Context, eventID string) ([]models.NetPatch, error)
	// Terminate, aktif bir patch'i terminated yapar. Zaten terminated ise değişmez.
	Terminate(ctx context.Context, id string, at time.Time) error
}
