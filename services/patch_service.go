package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/database"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/pkg/metrics"
	"github.com/akinalp/nexus/pkg/patchgraph"
	"github.com/akinalp/nexus/repository"
	"github.com/akinalp/nexus/ws"
)

// PatchService, net'ler arası ses köprülerini yönetir.
//
// Bir patch aktive edilmeden önce feedback loop kontrolünden geçer.
// Loop kontrolü ve INSERT aynı transaction'da yapılır; iki eşzamanlı istek
// birlikte bir cycle kapatamaz. Patch yazımları process içinde tek sıraya
// alınır: SQLite WAL'da okuyup sonra yazan iki transaction SQLITE_BUSY ile düşer.
type PatchService interface {
	CreatePatch(ctx context.Context, actor *models.TokenClaims, req *models.CreatePatchRequest) (*models.NetPatch, error)
	TerminatePatch(ctx context.Context, actor *models.TokenClaims, id string) (*models.NetPatch, error)
	ListActive(ctx context.Context, eventID string) ([]models.NetPatch, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.NetPatch, error)
	// Check, persist etmeden loop kontrolü yapar (UI uyarısı için).
	Check(ctx context.Context, req *models.CreatePatchRequest) (*models.PatchCheckResult, error)
}

type patchService struct {
	writeMu sync.Mutex

	db        *sql.DB
	patchRepo repository.NetPatchRepository
	hub       ws.EventPublisher
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewPatchService, constructor.
// db: CreatePatch'te WithTx ile atomik kontrol + insert için doğrudan *sql.DB gerekir.
func NewPatchService(
	db *sql.DB,
	patchRepo repository.NetPatchRepository,
	hub ws.EventPublisher,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) PatchService {
	return &patchService{
		db:        db,
		patchRepo: patchRepo,
		hub:       hub,
		clock:     clk,
		logger:    logger,
		metrics:   m,
	}
}

func (s *patchService) CreatePatch(ctx context.Context, actor *models.TokenClaims, req *models.CreatePatchRequest) (*models.NetPatch, error) {
	if actor == nil || !actor.Permissions.Has(models.PermManagePatches) {
		return nil, fmt.Errorf("%w: missing manage patches permission", pkg.ErrForbidden)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	// State'ten bağımsız kurallar (self-loop, bidirectional) DB'ye dokunmadan reddedilir.
	if res := patchgraph.WouldCreateLoop(nil, req.SourceNetID, req.DestinationNetID, req.IsBidirectional); res.Loop {
		s.countValidation(res)
		return nil, fmt.Errorf("%w: %s", pkg.ErrPatchLoop, res.Detail())
	}

	patch := &models.NetPatch{
		ID:               uuid.NewString(),
		SourceNetID:      req.SourceNetID,
		DestinationNetID: req.DestinationNetID,
		IsBidirectional:  req.IsBidirectional,
		Status:           models.PatchStatusActive,
		CreatedBy:        actor.UserID,
		CreatedAt:        s.clock.Now().UTC(),
	}
	if req.EventID != "" {
		eventID := req.EventID
		patch.EventID = &eventID
	}

	s.writeMu.Lock()
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txRepo := repository.NewSQLiteNetPatchRepo(tx)

		// Graph tüm aktif patch'lerden kurulur: ses event sınırında durmaz.
		active, err := txRepo.ListActive(ctx, "")
		if err != nil {
			return err
		}

		res := patchgraph.WouldCreateLoop(active, req.SourceNetID, req.DestinationNetID, req.IsBidirectional)
		s.countValidation(res)
		if res.Loop {
			return fmt.Errorf("%w: %s", pkg.ErrPatchLoop, res.Detail())
		}

		return txRepo.Create(ctx, patch)
	})
	s.writeMu.Unlock()
	if database.IsBusy(err) {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBusy, err)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("net patch created",
		zap.String("patch_id", patch.ID),
		zap.String("source_net_id", patch.SourceNetID),
		zap.String("destination_net_id", patch.DestinationNetID),
		zap.String("created_by", patch.CreatedBy),
	)
	s.publish(ws.ActionCreated, *patch)
	return patch, nil
}

func (s *patchService) TerminatePatch(ctx context.Context, actor *models.TokenClaims, id string) (*models.NetPatch, error) {
	if actor == nil || !actor.Permissions.Has(models.PermManagePatches) {
		return nil, fmt.Errorf("%w: missing manage patches permission", pkg.ErrForbidden)
	}

	before, err := s.patchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	err = s.patchRepo.Terminate(ctx, id, s.clock.Now().UTC())
	s.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	patch, err := s.patchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Zaten terminated olan patch için tekrar event gönderilmez.
	if before.Status == models.PatchStatusActive {
		s.logger.Info("net patch terminated", zap.String("patch_id", id), zap.String("actor", actor.UserID))
		s.publish(ws.ActionTerminated, *patch)
	}
	return patch, nil
}

func (s *patchService) ListActive(ctx context.Context, eventID string) ([]models.NetPatch, error) {
	return s.patchRepo.ListActive(ctx, eventID)
}

func (s *patchService) ListByEvent(ctx context.Context, eventID string) ([]models.NetPatch, error) {
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", pkg.ErrBadRequest)
	}
	return s.patchRepo.ListByEvent(ctx, eventID)
}

func (s *patchService) Check(ctx context.Context, req *models.CreatePatchRequest) (*models.PatchCheckResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	active, err := s.patchRepo.ListActive(ctx, "")
	if err != nil {
		return nil, err
	}

	res := patchgraph.WouldCreateLoop(active, req.SourceNetID, req.DestinationNetID, req.IsBidirectional)
	return &models.PatchCheckResult{Loop: res.Loop, Reason: res.Detail()}, nil
}

func (s *patchService) countValidation(res patchgraph.Result) {
	if s.metrics == nil {
		return
	}
	if res.Loop {
		s.metrics.PatchValidations.WithLabelValues("rejected", res.Reason).Inc()
		return
	}
	s.metrics.PatchValidations.WithLabelValues("accepted", "").Inc()
}

func (s *patchService) publish(action string, patch models.NetPatch) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToAll(ws.Event{
		Op:   ws.OpPatchUpdate,
		Data: ws.PatchUpdateData{Action: action, Patch: patch},
	})
}
