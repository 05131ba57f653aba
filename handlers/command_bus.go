package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/services"
)

// CommandBusHandler, command bus snapshot endpoint'lerini yönetir.
type CommandBusHandler struct {
	bus        services.CommandBus
	maxEntries int
}

// NewCommandBusHandler, constructor. maxEntries, Append sonrası tutulan en fazla entry sayısı.
func NewCommandBusHandler(bus services.CommandBus, maxEntries int) *CommandBusHandler {
	return &CommandBusHandler{bus: bus, maxEntries: maxEntries}
}

// Get godoc
// GET /api/command-bus
func (h *CommandBusHandler) Get(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, h.bus.Get())
}

// Set godoc
// PUT /api/command-bus
// Snapshot'ı bütün olarak değiştirir. COMMAND_NET yetkisi gerektirir.
func (h *CommandBusHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req models.CommandBusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, e := range req.Entries {
		if !validEntry(e) {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "every entry needs type and net_id")
			return
		}
	}

	pkg.JSON(w, http.StatusOK, h.bus.Set(r.Context(), req.Entries))
}

// Append godoc
// POST /api/command-bus/entries
// Tek entry ekler; en eski entry'ler maxEntries'i aşınca düşer. COMMAND_NET yetkisi gerektirir.
func (h *CommandBusHandler) Append(w http.ResponseWriter, r *http.Request) {
	var entry models.CommandEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validEntry(entry) {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "entry needs type and net_id")
		return
	}

	pkg.JSON(w, http.StatusCreated, h.bus.Append(r.Context(), entry, h.maxEntries))
}

// ForNet godoc
// GET /api/nets/{netId}/command-bus
func (h *CommandBusHandler) ForNet(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, h.bus.ForNet(r.PathValue("netId")))
}

func validEntry(e models.CommandEntry) bool {
	return e.Type != "" && e.NetID != ""
}
