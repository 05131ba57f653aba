package services

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/pkg/cache"
	"github.com/akinalp/nexus/repository"
)

// NetService, kalıcı voice net tanımlarını yönetir.
type NetService interface {
	Create(ctx context.Context, actor *models.TokenClaims, req *models.CreateNetRequest) (*models.VoiceNet, error)
	GetByID(ctx context.Context, id string) (*models.VoiceNet, error)
	List(ctx context.Context, eventID string) ([]models.VoiceNet, error)
	Close()
}

type netService struct {
	netRepo repository.VoiceNetRepository
	nets    *cache.TTLCache[string, models.VoiceNet]
	clock   clock.Clock
	logger  *zap.Logger
}

// NewNetService, constructor. Net tanımları nadiren değişir; GetByID
// sonuçları cacheTTL boyunca bellekten döner.
func NewNetService(netRepo repository.VoiceNetRepository, clk clock.Clock, cacheTTL time.Duration, logger *zap.Logger) NetService {
	return &netService{
		netRepo: netRepo,
		nets:    cache.New[string, models.VoiceNet](clk, cacheTTL, 5*cacheTTL),
		clock:   clk,
		logger:  logger,
	}
}

func (s *netService) Create(ctx context.Context, actor *models.TokenClaims, req *models.CreateNetRequest) (*models.VoiceNet, error) {
	if actor == nil || !actor.Permissions.Has(models.PermManageNets) {
		return nil, fmt.Errorf("%w: missing manage nets permission", pkg.ErrForbidden)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	net := &models.VoiceNet{
		ID:        uuid.NewString(),
		Code:      req.Code,
		Label:     req.Label,
		StageMode: req.StageMode,
		Priority:  req.Priority,
		CreatedAt: s.clock.Now().UTC(),
	}
	if req.EventID != "" {
		eventID := req.EventID
		net.EventID = &eventID
	}

	if err := s.netRepo.Create(ctx, net); err != nil {
		return nil, err
	}

	s.nets.Set(net.ID, *net)
	s.logger.Info("voice net created",
		zap.String("net_id", net.ID),
		zap.String("code", net.Code),
		zap.String("actor", actor.UserID),
	)
	return net, nil
}

func (s *netService) GetByID(ctx context.Context, id string) (*models.VoiceNet, error) {
	if net, ok := s.nets.Get(id); ok {
		return &net, nil
	}

	net, err := s.netRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.nets.Set(id, *net)
	return net, nil
}

func (s *netService) List(ctx context.Context, eventID string) ([]models.VoiceNet, error) {
	nets, err := s.netRepo.List(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for _, n := range nets {
		s.nets.Set(n.ID, n)
	}
	return nets, nil
}

func (s *netService) Close() {
	s.nets.Close()
}
