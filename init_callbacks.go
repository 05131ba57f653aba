// Package main: WebSocket Hub callback wire-up.
//
// registerHubCallbacks, Hub'ın client komutlarını service katmanına bağlar.
//
// Hub ws paketinde yaşıyor, state ise service katmanında. Hub'ın
// service'lere bağımlı olmasını istemiyoruz; main package wire-up noktasıdır.
//
// Callback'ler Hub mutex'i tutulmadan çağrılır, bu yüzden burada Broadcast
// çağırmak güvenlidir. Bir bağlantının komutları sırayla gelir.
package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/akinalp/nexus/handlers"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/ws"
)

// registerHubCallbacks, tüm Hub callback'lerini ve session removal hook'unu register eder.
func registerHubCallbacks(hub *ws.Hub, svcs *Services, renewTx bool, logger *zap.Logger) {
	registry := svcs.Registry
	arbiter := svcs.Arbiter
	hail := svcs.Hail

	// ─── Session removal ───
	// Leave, sweep ve disconnect hepsi buradan geçer: client'ın o net'teki
	// authority'si bırakılır, kullanıcının net'te başka session'ı kalmadıysa
	// hail durumu temizlenir.
	registry.OnSessionRemoved(func(session models.VoiceSession) {
		ctx := context.Background()
		arbiter.ReleaseHeld(ctx, session.NetID, session.UserID, session.ClientID)

		for _, s := range registry.GetUserSessions(session.UserID) {
			if s.NetID == session.NetID {
				return
			}
		}
		hail.ClearUser(ctx, session.NetID, session.UserID)
	})

	// Konuşma izni geri alınan kullanıcı elindeki authority'yi de kaybeder.
	hail.OnRevoked(func(ctx context.Context, netID, userID string) {
		if arbiter.ReleaseHeld(ctx, netID, userID, "") {
			logger.Info("transmit authority released after hail revoke",
				zap.String("net_id", netID),
				zap.String("user_id", userID),
			)
		}
	})

	// ─── Bağlantı ───

	hub.OnClientConnect(func(info ws.ClientInfo) {
		authorities := arbiter.List()
		for i := range authorities {
			authorities[i] = *authorities[i].VisibleTo(info.UserID)
		}
		hub.SendToClient(info.UserID, info.ClientID, ws.Event{
			Op: ws.OpReady,
			Data: ws.ReadyData{
				UserID:      info.UserID,
				ClientID:    info.ClientID,
				Sessions:    registry.GetUserSessions(info.UserID),
				Authorities: authorities,
				CommandBus:  svcs.CommandBus.Get(),
			},
		})
	})

	hub.OnClientDisconnect(func(info ws.ClientInfo) {
		removed := registry.RemoveClientSessions(info.UserID, info.ClientID)
		released := arbiter.ReleaseClient(context.Background(), info.UserID, info.ClientID)
		logger.Debug("client cleanup",
			zap.String("user_id", info.UserID),
			zap.String("client_id", info.ClientID),
			zap.Int("sessions_removed", len(removed)),
			zap.Int("authorities_released", released),
		)
	})

	hub.OnHeartbeat(func(info ws.ClientInfo) {
		registry.HeartbeatClient(info.UserID, info.ClientID)
		if !renewTx {
			return
		}
		// Sadece hâlâ konuşabildiği net'lerdeki authority'ler yenilenir.
		for _, cur := range arbiter.List() {
			if cur.UserID != info.UserID || cur.ClientID != info.ClientID {
				continue
			}
			if handlers.CanTransmit(info.Claims, cur.NetID, hail) {
				arbiter.Renew(context.Background(), info.UserID, info.ClientID, cur.NetID)
			}
		}
	})

	// ─── Session ───

	hub.OnNetJoin(func(info ws.ClientInfo, data ws.NetJoinData) {
		if !info.Claims.Permissions.Has(models.PermConnectVoice) {
			sendError(hub, info, ws.OpNetJoin, "missing connect voice permission")
			return
		}
		callsign := data.Callsign
		if callsign == "" {
			callsign = info.Claims.DisplayName()
		}
		registry.AddSession(data.NetID, info.UserID, callsign, info.ClientID, data.Extras)
	})

	hub.OnNetLeave(func(info ws.ClientInfo, data ws.NetLeaveData) {
		if session, ok := registry.FindSession(data.NetID, info.UserID, info.ClientID); ok {
			registry.RemoveSession(session.ID)
		}
	})

	hub.OnSpeaking(func(info ws.ClientInfo, data ws.SpeakingData) {
		if session, ok := registry.FindSession(data.NetID, info.UserID, info.ClientID); ok {
			registry.UpdateSpeaking(session.ID, data.IsSpeaking)
		}
	})

	hub.OnTopology(func(info ws.ClientInfo, data ws.TopologyData) {
		if data.DisciplineMode != nil && !data.DisciplineMode.Valid() {
			sendError(hub, info, ws.OpTopology, "discipline_mode must be PTT or OPEN")
			return
		}
		if session, ok := registry.FindSession(data.NetID, info.UserID, info.ClientID); ok {
			registry.UpdateTopology(session.ID, data.TopologyUpdate)
		}
	})

	// ─── Transmit authority ───

	hub.OnTxClaim(func(info ws.ClientInfo, data ws.TxData) {
		if data.NetID != "" && !handlers.CanTransmit(info.Claims, data.NetID, hail) {
			sendError(hub, info, ws.OpTxClaim, "not allowed to transmit on this net")
			return
		}
		result := arbiter.Claim(context.Background(), data.NetID, info.UserID, info.ClientID)
		hub.SendToClient(info.UserID, info.ClientID, ws.Event{
			Op:   ws.OpTxClaimResult,
			Data: ws.TxClaimResultData{NetID: data.NetID, ClaimResult: result},
		})
	})

	hub.OnTxRelease(func(info ws.ClientInfo, data ws.TxData) {
		arbiter.ReleaseHeld(context.Background(), data.NetID, info.UserID, info.ClientID)
	})

	// ─── Hail ───

	hub.OnHail(func(info ws.ClientInfo, op string, data ws.HailData) {
		ctx := context.Background()
		var err error
		switch op {
		case ws.OpHailRequest:
			_, err = hail.Request(ctx, info.Claims, data.NetID)
		case ws.OpHailGrant:
			_, err = hail.Grant(ctx, info.Claims, data.NetID, data.UserID)
		case ws.OpHailDeny:
			_, err = hail.Deny(ctx, info.Claims, data.NetID, data.UserID)
		case ws.OpHailRevoke:
			_, err = hail.Revoke(ctx, info.Claims, data.NetID, data.UserID)
		}
		if err != nil {
			sendError(hub, info, op, hailErrorMessage(err))
		}
	})
}

// sendError, reddedilen komutu sadece gönderen client'a bildirir.
func sendError(hub ws.EventPublisher, info ws.ClientInfo, op, message string) {
	hub.SendToClient(info.UserID, info.ClientID, ws.Event{
		Op:   ws.OpError,
		Data: ws.ErrorData{Op: op, Message: message},
	})
}

// hailErrorMessage, service hatasını client'a gösterilecek mesaja çevirir.
func hailErrorMessage(err error) string {
	switch {
	case errors.Is(err, pkg.ErrForbidden):
		return "insufficient permissions"
	case errors.Is(err, pkg.ErrRateLimited):
		return err.Error()
	case errors.Is(err, pkg.ErrNotFound):
		return "no such hail"
	default:
		return "hail command failed"
	}
}
