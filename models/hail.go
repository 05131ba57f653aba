package models

import "time"

// HailRequest, stage mode bir net'te konuşma izni isteği.
// Kalıcı değildir; sadece mesaj akışından yeniden kurulur.
type HailRequest struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rank      string    `json:"rank"`
	Timestamp time.Time `json:"timestamp"`
}

// HailState, bir katılımcının hail durumu.
type HailState string

const (
	HailStateNone    HailState = "none"
	HailStatePending HailState = "pending"
	HailStateGranted HailState = "granted"
	HailStateDenied  HailState = "denied"
)

// HailSnapshot, bir net'in komutan görünümündeki hail kuyruğu.
type HailSnapshot struct {
	NetID          string        `json:"net_id"`
	Pending        []HailRequest `json:"pending"`
	ActiveSpeakers []string      `json:"active_speakers"`
}
