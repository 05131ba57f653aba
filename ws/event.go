// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Hub: tüm bağlantıları (user → client set) yöneten merkezi yapı
// - Client: tek bir WebSocket bağlantısı (user + client_id)
// - Event: client-server arası mesaj formatı
//
// Net'e özgü event'ler (session, authority, hail) sadece o net'in
// dinleyicilerine gider; dinleyici listesi service katmanında
// SessionRegistry'den hesaplanır ve BroadcastToUsers ile gönderilir.
package ws

import (
	"github.com/akinalp/nexus/models"
)

// Event, WebSocket üzerinden iletilen bir mesaj.
//
// Seq her outbound event'te artar; client eksik event'i buradan tespit eder.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → Server operasyonları
const (
	OpHeartbeat  = "heartbeat"
	OpNetJoin    = "net_join"
	OpNetLeave   = "net_leave"
	OpSpeaking   = "speaking"
	OpTopology   = "topology"
	OpTxClaim    = "tx_claim"
	OpTxRelease  = "tx_release"
	OpHailGrant  = "hail_grant"
	OpHailDeny   = "hail_deny"
	OpHailRevoke = "hail_revoke"
)

// Hail request iki yönde de aynı op'u kullanır: client isteği gönderir,
// server kabul edip net dinleyicilerine aynı op ile dağıtır.
const OpHailRequest = "hail_request"

// Server → Client operasyonları
const (
	OpReady             = "ready"
	OpHeartbeatAck      = "heartbeat_ack"
	OpSessionUpdate     = "session_update"
	OpTxAuthorityUpdate = "tx_authority_update"
	OpTxClaimResult     = "tx_claim_result"
	OpCommandBusUpdate  = "command_bus_update"
	OpHailGranted       = "hail_granted"
	OpHailDenied        = "hail_denied"
	OpHailRevoked       = "hail_revoked"
	OpPatchUpdate       = "patch_update"
	OpError             = "error"
)

// Session update action'ları.
const (
	ActionJoin   = "join"
	ActionUpdate = "update"
	ActionLeave  = "leave"
)

// Patch update action'ları.
const (
	ActionCreated    = "created"
	ActionTerminated = "terminated"
)

// ClientInfo, callback'lere verilen bağlantı kimliği.
type ClientInfo struct {
	UserID   string
	ClientID string
	Claims   *models.TokenClaims
}

// ─── Client → Server payload'ları ───

// NetJoinData, net_join payload'ı.
type NetJoinData struct {
	NetID    string               `json:"net_id"`
	Callsign string               `json:"callsign"`
	Extras   models.SessionExtras `json:"extras"`
}

// NetLeaveData, net_leave payload'ı.
type NetLeaveData struct {
	NetID string `json:"net_id"`
}

// SpeakingData, speaking payload'ı.
type SpeakingData struct {
	NetID      string `json:"net_id"`
	IsSpeaking bool   `json:"is_speaking"`
}

// TopologyData, topology payload'ı. Alanlar nil ise değişmez.
type TopologyData struct {
	NetID string `json:"net_id"`
	models.TopologyUpdate
}

// TxData, tx_claim / tx_release payload'ı.
type TxData struct {
	NetID string `json:"net_id"`
}

// HailData, hail_* payload'ı. grant/deny/revoke için UserID hedef kullanıcıdır.
type HailData struct {
	NetID  string `json:"net_id"`
	UserID string `json:"user_id,omitempty"`
}

// ─── Server → Client payload'ları ───

// ReadyData, bağlantı kurulduğunda gönderilen ilk event'in payload'ı.
type ReadyData struct {
	UserID      string                     `json:"user_id"`
	ClientID    string                     `json:"client_id"`
	Sessions    []models.VoiceSession      `json:"sessions"`
	Authorities []models.TransmitAuthority `json:"authorities"`
	CommandBus  []models.CommandEntry      `json:"command_bus"`
}

// SessionUpdateData, session_update payload'ı.
type SessionUpdateData struct {
	Action  string              `json:"action"`
	Session models.VoiceSession `json:"session"`
}

// TxAuthorityUpdateData, tx_authority_update payload'ı. Authority nil = boş.
type TxAuthorityUpdateData struct {
	NetID     string                    `json:"net_id"`
	Authority *models.TransmitAuthority `json:"authority"`
}

// TxClaimResultData, tx_claim_result payload'ı (sadece isteyen client'a).
type TxClaimResultData struct {
	NetID string `json:"net_id"`
	models.ClaimResult
}

// CommandBusUpdateData, command_bus_update payload'ı.
type CommandBusUpdateData struct {
	Entries []models.CommandEntry `json:"entries"`
}

// PatchUpdateData, patch_update payload'ı.
type PatchUpdateData struct {
	Action string          `json:"action"`
	Patch  models.NetPatch `json:"patch"`
}

// ErrorData, reddedilen bir client komutu için gönderilir.
type ErrorData struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}
