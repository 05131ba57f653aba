// Package main: Service katmanı başlatma.
//
// initServices, replicator transport'unu seçer ve tüm service'leri
// doğru bağımlılık sırasıyla oluşturur:
// replicator → registry → arbiter / hail → diğerleri.
package main

import (
	"database/sql"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/config"
	"github.com/akinalp/nexus/pkg/metrics"
	"github.com/akinalp/nexus/pkg/ratelimit"
	"github.com/akinalp/nexus/pkg/replicator"
	"github.com/akinalp/nexus/services"
	"github.com/akinalp/nexus/ws"
)

// Services, tüm service instance'larını tutan container struct.
type Services struct {
	Replicator *replicator.Replicator
	Limiter    *ratelimit.Limiter

	Auth       services.AuthService
	Net        services.NetService
	Registry   services.SessionRegistry
	Arbiter    services.TransmitArbiter
	CommandBus services.CommandBus
	Patch      services.PatchService
	Hail       services.HailService
	VoiceToken services.VoiceTokenService
}

// initServices, tüm service'leri oluşturur.
// Dönen replicator henüz Start edilmemiştir; main abonelikten önce callback'leri bağlar.
func initServices(
	cfg *config.Config,
	db *sql.DB,
	repos *Repositories,
	hub *ws.Hub,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*Services, error) {
	transport, err := newTransport(cfg.Replicator, logger)
	if err != nil {
		return nil, err
	}

	rep := replicator.New(cfg.Replicator.InstanceID, transport, repos.StateCache, logger.Named("replicator"), m)

	registry := services.NewSessionRegistry(clk, hub, logger.Named("sessions"), m)
	arbiter := services.NewTransmitArbiter(clk, cfg.Voice.TxTTL, rep, registry, hub, logger.Named("tx"), m)
	commandBus := services.NewCommandBus(rep, hub, logger.Named("command_bus"))

	limiter := ratelimit.New(clk, cfg.Voice.HailRateMax, cfg.Voice.HailRateWindow, cfg.Voice.HailRateCooldown)

	var data services.DataSender
	if cfg.LiveKit.DataChannel && cfg.LiveKit.URL != "" {
		data = services.NewLiveKitDataSender(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	}
	hail := services.NewHailService(registry, hub, data, limiter, clk, logger.Named("hail"), m)

	return &Services{
		Replicator: rep,
		Limiter:    limiter,
		Auth:       services.NewAuthService(cfg.JWT.Secret),
		Net:        services.NewNetService(repos.Net, clk, cfg.Voice.NetCacheTTL, logger.Named("nets")),
		Registry:   registry,
		Arbiter:    arbiter,
		CommandBus: commandBus,
		Patch:      services.NewPatchService(db, repos.Patch, hub, clk, logger.Named("patches"), m),
		Hail:       hail,
		VoiceToken: services.NewVoiceTokenService(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenValidFor),
	}, nil
}

// newTransport, config'teki transport adına göre replicator transport'u oluşturur.
// "local" tek process içi bus'tır (geliştirme ve tek instance kurulumları).
func newTransport(cfg config.ReplicatorConfig, logger *zap.Logger) (replicator.Transport, error) {
	switch cfg.Transport {
	case config.TransportRedis:
		t, err := replicator.NewRedisTransport(cfg.RedisURL, cfg.Channel, logger.Named("redis"))
		if err != nil {
			return nil, fmt.Errorf("failed to init redis transport: %w", err)
		}
		return t, nil
	case config.TransportNATS:
		t, err := replicator.NewNATSTransport(cfg.NATSURL, cfg.Channel, cfg.InstanceID, logger.Named("nats"))
		if err != nil {
			return nil, fmt.Errorf("failed to init nats transport: %w", err)
		}
		return t, nil
	case config.TransportLocal:
		return replicator.NewLocalBus().Endpoint(), nil
	default:
		return replicator.Noop{}, nil
	}
}
