package models

// Command bus entry tipleri.
const (
	CommandPriorityOverride    = "PRIORITY_OVERRIDE"
	CommandSilenceUntilCleared = "SILENCE_UNTIL_CLEARED"
)

// CommandEntry, command bus'taki tek bir komut.
// Payload tipe özgü ek alanları taşır.
type CommandEntry struct {
	Type    string         `json:"type"`
	NetID   string         `json:"net_id"`
	Payload map[string]any `json:"payload,omitempty"`
}

// CommandBusRequest, PUT /api/command-bus body'si; snapshot'ı tamamen değiştirir.
type CommandBusRequest struct {
	Entries []CommandEntry `json:"entries"`
}
