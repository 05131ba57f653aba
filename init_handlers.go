// Package main: Handler katmanı başlatma.
package main

import (
	"github.com/akinalp/nexus/config"
	"github.com/akinalp/nexus/handlers"
	"github.com/akinalp/nexus/ws"
)

// Handlers, tüm HTTP handler instance'larını tutan container struct.
type Handlers struct {
	Health     *handlers.HealthHandler
	Net        *handlers.NetHandler
	Session    *handlers.SessionHandler
	Tx         *handlers.TxHandler
	CommandBus *handlers.CommandBusHandler
	Patch      *handlers.PatchHandler
	Hail       *handlers.HailHandler
	Voice      *handlers.VoiceHandler
	WS         *ws.Handler
}

// initHandlers, service'lerden handler'ları oluşturur.
func initHandlers(cfg *config.Config, svcs *Services, hub *ws.Hub) *Handlers {
	return &Handlers{
		Health:     handlers.NewHealthHandler(cfg.Replicator.InstanceID, cfg.Replicator.Transport, hub),
		Net:        handlers.NewNetHandler(svcs.Net),
		Session:    handlers.NewSessionHandler(svcs.Registry, svcs.Arbiter, svcs.Hail, cfg.Voice.TxRenewOnHeartbeat),
		Tx:         handlers.NewTxHandler(svcs.Arbiter, svcs.Hail, svcs.Registry, hub),
		CommandBus: handlers.NewCommandBusHandler(svcs.CommandBus, cfg.Voice.CommandBusMax),
		Patch:      handlers.NewPatchHandler(svcs.Patch),
		Hail:       handlers.NewHailHandler(svcs.Hail),
		Voice:      handlers.NewVoiceHandler(svcs.VoiceToken),
		WS:         ws.NewHandler(hub, svcs.Auth, cfg.Server.AllowedOrigins),
	}
}
