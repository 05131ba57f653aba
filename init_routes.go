// Package main: HTTP route registration.
//
// initRoutes, tüm API endpoint'lerini mux'a bağlar.
// Middleware chain helper'ları burada tanımlıdır:
//   - auth: JWT token doğrulaması
//   - authPerm: auth + token'daki belirli permission kontrolü
package main

import (
	"net/http"

	"github.com/akinalp/nexus/middleware"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/services"
)

// initRoutes, middleware chain'i kurar ve tüm endpoint'leri mux'a bağlar.
//
// Route sıralama kuralı: Literal path'ler parametrik path'lerden ÖNCE tanımlanmalı.
// Örnek: "/api/patches/check" → "/api/patches/{id}/terminate" öncesinde.
func initRoutes(mux *http.ServeMux, h *Handlers, authService services.AuthService) {
	// ─── Middleware ───
	authMw := middleware.NewAuthMiddleware(authService)
	permMw := middleware.NewPermissionMiddleware()

	// ─── Middleware Chain Helpers ───
	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(handler))
	}
	authPerm := func(perm models.Permission, handler http.HandlerFunc) http.Handler {
		return authMw.Require(permMw.Require(perm, http.HandlerFunc(handler)))
	}

	// Health
	mux.HandleFunc("GET /api/health", h.Health.Check)

	// Nets
	mux.Handle("GET /api/nets", auth(h.Net.List))
	mux.Handle("POST /api/nets", auth(h.Net.Create))
	mux.Handle("GET /api/nets/{netId}", auth(h.Net.Get))

	// Sessions
	mux.Handle("GET /api/nets/{netId}/sessions", auth(h.Session.ListNet))
	mux.Handle("POST /api/nets/{netId}/sessions", authPerm(models.PermConnectVoice, h.Session.Join))
	mux.Handle("GET /api/users/me/sessions", auth(h.Session.Mine))
	mux.Handle("DELETE /api/sessions/{id}", auth(h.Session.Leave))
	mux.Handle("POST /api/sessions/{id}/heartbeat", auth(h.Session.Heartbeat))
	mux.Handle("PATCH /api/sessions/{id}/speaking", auth(h.Session.Speaking))
	mux.Handle("PATCH /api/sessions/{id}/topology", auth(h.Session.Topology))

	// Transmit authority
	mux.Handle("GET /api/tx", auth(h.Tx.List))
	mux.Handle("GET /api/nets/{netId}/tx", auth(h.Tx.Get))
	mux.Handle("POST /api/nets/{netId}/tx/claim", auth(h.Tx.Claim))
	mux.Handle("POST /api/nets/{netId}/tx/release", auth(h.Tx.Release))

	// Voice token
	mux.Handle("POST /api/nets/{netId}/voice-token", auth(h.Voice.Token))

	// Hail (stage mode)
	mux.Handle("GET /api/nets/{netId}/hail", auth(h.Hail.Get))
	mux.Handle("POST /api/nets/{netId}/hail", auth(h.Hail.Request))
	mux.Handle("POST /api/nets/{netId}/hail/{userId}/grant", auth(h.Hail.Grant))
	mux.Handle("POST /api/nets/{netId}/hail/{userId}/deny", auth(h.Hail.Deny))
	mux.Handle("POST /api/nets/{netId}/hail/{userId}/revoke", auth(h.Hail.Revoke))

	// Command bus
	mux.Handle("GET /api/command-bus", auth(h.CommandBus.Get))
	mux.Handle("PUT /api/command-bus", authPerm(models.PermCommandNet, h.CommandBus.Set))
	mux.Handle("POST /api/command-bus/entries", authPerm(models.PermCommandNet, h.CommandBus.Append))
	mux.Handle("GET /api/nets/{netId}/command-bus", auth(h.CommandBus.ForNet))

	// Patches
	mux.Handle("GET /api/events/{eventId}/patches", auth(h.Patch.ListByEvent))
	mux.Handle("POST /api/patches", auth(h.Patch.Create))
	mux.Handle("POST /api/patches/check", auth(h.Patch.Check))
	mux.Handle("POST /api/patches/{id}/terminate", auth(h.Patch.Terminate))

	// WebSocket; token query param ile doğrulanır, auth middleware yok.
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}
