package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg/ratelimit"
	"github.com/akinalp/nexus/pkg/replicator"
	"github.com/akinalp/nexus/services"
)

var (
	pilot = &models.TokenClaims{
		UserID:      "pilot",
		Callsign:    "Viper",
		Permissions: models.PermConnectVoice | models.PermSpeak,
	}
	listener = &models.TokenClaims{
		UserID:      "listener",
		Username:    "listener",
		Permissions: models.PermConnectVoice,
	}
	commander = &models.TokenClaims{
		UserID:      "cmdr",
		Callsign:    "Actual",
		Permissions: models.PermConnectVoice | models.PermSpeak | models.PermCommandNet,
	}
)

type fixture struct {
	mux      *http.ServeMux
	clock    *clock.Mock
	registry services.SessionRegistry
	arbiter  services.TransmitArbiter
	hail     services.HailService
}

func newFixture(t *testing.T, renewTx bool) *fixture {
	t.Helper()

	clk := clock.NewMock()
	log := zap.NewNop()
	rep := replicator.New("test", nil, nil, log, nil)
	registry := services.NewSessionRegistry(clk, nil, log, nil)
	arbiter := services.NewTransmitArbiter(clk, 30*time.Second, rep, registry, nil, log, nil)
	limiter := ratelimit.New(clk, 3, 10*time.Second, 30*time.Second)
	t.Cleanup(limiter.Close)
	hail := services.NewHailService(registry, nil, nil, limiter, clk, log, nil)
	bus := services.NewCommandBus(rep, nil, log)

	hail.OnRevoked(func(ctx context.Context, netID, userID string) {
		arbiter.ReleaseHeld(ctx, netID, userID, "")
	})

	sh := NewSessionHandler(registry, arbiter, hail, renewTx)
	th := NewTxHandler(arbiter, hail, registry)
	hh := NewHailHandler(hail)
	ch := NewCommandBusHandler(bus, 2)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/nets/{netId}/sessions", sh.ListNet)
	mux.HandleFunc("POST /api/nets/{netId}/sessions", sh.Join)
	mux.HandleFunc("GET /api/users/me/sessions", sh.Mine)
	mux.HandleFunc("DELETE /api/sessions/{id}", sh.Leave)
	mux.HandleFunc("POST /api/sessions/{id}/heartbeat", sh.Heartbeat)
	mux.HandleFunc("PATCH /api/sessions/{id}/speaking", sh.Speaking)
	mux.HandleFunc("PATCH /api/sessions/{id}/topology", sh.Topology)
	mux.HandleFunc("GET /api/tx", th.List)
	mux.HandleFunc("GET /api/nets/{netId}/tx", th.Get)
	mux.HandleFunc("POST /api/nets/{netId}/tx/claim", th.Claim)
	mux.HandleFunc("POST /api/nets/{netId}/tx/release", th.Release)
	mux.HandleFunc("GET /api/nets/{netId}/hail", hh.Get)
	mux.HandleFunc("POST /api/nets/{netId}/hail", hh.Request)
	mux.HandleFunc("POST /api/nets/{netId}/hail/{userId}/grant", hh.Grant)
	mux.HandleFunc("POST /api/nets/{netId}/hail/{userId}/revoke", hh.Revoke)
	mux.HandleFunc("GET /api/command-bus", ch.Get)
	mux.HandleFunc("PUT /api/command-bus", ch.Set)
	mux.HandleFunc("POST /api/command-bus/entries", ch.Append)
	mux.HandleFunc("GET /api/nets/{netId}/command-bus", ch.ForNet)

	return &fixture{mux: mux, clock: clk, registry: registry, arbiter: arbiter, hail: hail}
}

// do, claim'leri context'e koyarak isteği mux üzerinden çalıştırır.
func (f *fixture) do(t *testing.T, method, path string, claims *models.TokenClaims, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if claims != nil {
		req = req.WithContext(context.WithValue(req.Context(), ClaimsContextKey, claims))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

// decode, APIResponse.Data alanını dst'ye çözer.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func (f *fixture) join(t *testing.T, claims *models.TokenClaims, netID, clientID string) models.VoiceSession {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/nets/"+netID+"/sessions", claims, models.JoinNetRequest{ClientID: clientID})
	require.Equal(t, http.StatusOK, rec.Code)
	var s models.VoiceSession
	decode(t, rec, &s)
	return s
}

func TestSessionHandler_JoinAndList(t *testing.T) {
	f := newFixture(t, false)

	s := f.join(t, pilot, "net-1", "dev-a")
	assert.Equal(t, "Viper", s.Callsign)
	assert.Equal(t, "net-1", s.NetID)

	again := f.join(t, pilot, "net-1", "dev-a")
	assert.Equal(t, s.ID, again.ID)

	f.join(t, pilot, "net-1", "dev-b")

	var sessions []models.VoiceSession
	decode(t, f.do(t, http.MethodGet, "/api/nets/net-1/sessions", pilot, nil), &sessions)
	assert.Len(t, sessions, 2)

	var mine []models.VoiceSession
	decode(t, f.do(t, http.MethodGet, "/api/users/me/sessions", pilot, nil), &mine)
	assert.Len(t, mine, 2)
}

func TestSessionHandler_JoinValidation(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/api/nets/net-1/sessions", pilot, models.JoinNetRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/nets/net-1/sessions", nil, models.JoinNetRequest{ClientID: "dev-a"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionHandler_LeaveIsIdempotentAndOwned(t *testing.T) {
	f := newFixture(t, false)
	s := f.join(t, pilot, "net-1", "dev-a")

	rec := f.do(t, http.MethodDelete, "/api/sessions/"+s.ID, listener, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var out map[string]bool
	decode(t, f.do(t, http.MethodDelete, "/api/sessions/"+s.ID, pilot, nil), &out)
	assert.True(t, out["removed"])

	decode(t, f.do(t, http.MethodDelete, "/api/sessions/"+s.ID, pilot, nil), &out)
	assert.False(t, out["removed"])
}

func TestSessionHandler_SpeakingAndTopology(t *testing.T) {
	f := newFixture(t, false)
	s := f.join(t, pilot, "net-1", "dev-a")

	var updated models.VoiceSession
	decode(t, f.do(t, http.MethodPatch, "/api/sessions/"+s.ID+"/speaking", pilot,
		models.SpeakingRequest{IsSpeaking: true}), &updated)
	assert.True(t, updated.IsSpeaking)

	open := models.DisciplineOpen
	decode(t, f.do(t, http.MethodPatch, "/api/sessions/"+s.ID+"/topology", pilot,
		models.TopologyUpdate{MonitoredNetIDs: []string{"net-2", "net-2"}, DisciplineMode: &open}), &updated)
	assert.Equal(t, []string{"net-2"}, updated.MonitoredNetIDs)
	assert.Equal(t, models.DisciplineOpen, updated.DisciplineMode)

	bad := models.DisciplineMode("LOUD")
	rec := f.do(t, http.MethodPatch, "/api/sessions/"+s.ID+"/topology", pilot, models.TopologyUpdate{DisciplineMode: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/sessions/missing/speaking", pilot, models.SpeakingRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_HeartbeatRenewsAuthority(t *testing.T) {
	f := newFixture(t, true)
	s := f.join(t, pilot, "net-1", "dev-a")

	var result models.ClaimResult
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/tx/claim", pilot, models.TransmitRequest{ClientID: "dev-a"}), &result)
	require.True(t, result.Granted)

	f.clock.Add(20 * time.Second)
	rec := f.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/heartbeat", pilot, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	f.clock.Add(20 * time.Second)
	authority := f.arbiter.Get("net-1")
	require.NotNil(t, authority)
	assert.Equal(t, "dev-a", authority.ClientID)
}

func TestTxHandler_ClaimConflictIsNotAnError(t *testing.T) {
	f := newFixture(t, false)
	f.join(t, pilot, "net-1", "dev-a")
	f.join(t, commander, "net-1", "dev-c")

	var first, second models.ClaimResult
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/tx/claim", pilot, models.TransmitRequest{ClientID: "dev-a"}), &first)
	assert.True(t, first.Granted)

	rec := f.do(t, http.MethodPost, "/api/nets/net-1/tx/claim", commander, models.TransmitRequest{ClientID: "dev-c"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &second)
	assert.False(t, second.Granted)
	require.NotNil(t, second.Authority)
	assert.Equal(t, "pilot", second.Authority.UserID)
	assert.Empty(t, second.Authority.ClientID)
}

func TestTxHandler_ClaimRequiresSpeakOrHail(t *testing.T) {
	f := newFixture(t, false)
	f.join(t, listener, "net-1", "dev-l")

	rec := f.do(t, http.MethodPost, "/api/nets/net-1/tx/claim", listener, models.TransmitRequest{ClientID: "dev-l"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/nets/net-1/hail", listener, nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/nets/net-1/hail/listener/grant", commander, nil).Code)

	var result models.ClaimResult
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/tx/claim", listener, models.TransmitRequest{ClientID: "dev-l"}), &result)
	assert.True(t, result.Granted)
}

func TestTxHandler_ClaimWithForeignClientID(t *testing.T) {
	f := newFixture(t, false)
	f.join(t, pilot, "net-1", "dev-a")

	var result models.ClaimResult
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/tx/claim", pilot, models.TransmitRequest{ClientID: "dev-a"}), &result)
	require.True(t, result.Granted)

	// Holder'ın client_id'si ile gelen başka kullanıcı kilidi alamaz.
	rec := f.do(t, http.MethodPost, "/api/nets/net-1/tx/claim", commander, models.TransmitRequest{ClientID: "dev-a"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Aynı client_id ile join olsa bile arbiter kullanıcıyı ayırt eder.
	f.join(t, commander, "net-1", "dev-a")
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/tx/claim", commander, models.TransmitRequest{ClientID: "dev-a"}), &result)
	assert.False(t, result.Granted)
	assert.Equal(t, "pilot", f.arbiter.Get("net-1").UserID)
}

func TestTxHandler_ReadsHideForeignClientID(t *testing.T) {
	f := newFixture(t, false)
	f.join(t, pilot, "net-1", "dev-a")
	f.join(t, listener, "net-1", "dev-l")
	f.arbiter.Claim(context.Background(), "net-1", "pilot", "dev-a")

	var seen models.TransmitAuthority
	decode(t, f.do(t, http.MethodGet, "/api/nets/net-1/tx", listener, nil), &seen)
	assert.Equal(t, "pilot", seen.UserID)
	assert.Empty(t, seen.ClientID)

	var list []models.TransmitAuthority
	decode(t, f.do(t, http.MethodGet, "/api/tx", listener, nil), &list)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].ClientID)

	decode(t, f.do(t, http.MethodGet, "/api/nets/net-1/tx", pilot, nil), &seen)
	assert.Equal(t, "dev-a", seen.ClientID)

	var sessions []models.VoiceSession
	decode(t, f.do(t, http.MethodGet, "/api/nets/net-1/sessions", listener, nil), &sessions)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		if s.UserID == "listener" {
			assert.Equal(t, "dev-l", s.ClientID)
		} else {
			assert.Empty(t, s.ClientID)
		}
	}
}

func TestTxHandler_Release(t *testing.T) {
	f := newFixture(t, false)
	f.join(t, pilot, "net-1", "dev-a")
	f.join(t, pilot, "net-1", "dev-b")
	f.arbiter.Claim(context.Background(), "net-1", "pilot", "dev-a")

	rec := f.do(t, http.MethodPost, "/api/nets/net-1/tx/release", pilot, models.TransmitRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/nets/net-1/tx/release", pilot, models.TransmitRequest{ClientID: "dev-x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var out map[string]bool
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/tx/release", pilot, models.TransmitRequest{ClientID: "dev-b"}), &out)
	assert.False(t, out["released"])
	assert.NotNil(t, f.arbiter.Get("net-1"))

	// COMMAND_NET client_id olmadan zorla bırakabilir.
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/tx/release", commander, models.TransmitRequest{}), &out)
	assert.True(t, out["released"])
	assert.Nil(t, f.arbiter.Get("net-1"))
}

func TestTxHandler_ForeignReleaseIsRejected(t *testing.T) {
	f := newFixture(t, false)
	f.join(t, pilot, "net-1", "dev-a")
	f.arbiter.Claim(context.Background(), "net-1", "pilot", "dev-a")

	// Holder'ın client_id'si çağırana ait değil.
	rec := f.do(t, http.MethodPost, "/api/nets/net-1/tx/release", listener, models.TransmitRequest{ClientID: "dev-a"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Aynı client_id ile join olsa bile başkasının kilidini bırakamaz.
	f.join(t, listener, "net-1", "dev-a")
	var out map[string]bool
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/tx/release", listener, models.TransmitRequest{ClientID: "dev-a"}), &out)
	assert.False(t, out["released"])
	require.NotNil(t, f.arbiter.Get("net-1"))
	assert.Equal(t, "pilot", f.arbiter.Get("net-1").UserID)
}

func TestTxHandler_RevokeDropsAuthorityAndRenewal(t *testing.T) {
	f := newFixture(t, true)
	s := f.join(t, listener, "net-1", "dev-l")

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/nets/net-1/hail", listener, nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/nets/net-1/hail/listener/grant", commander, nil).Code)

	var result models.ClaimResult
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/tx/claim", listener, models.TransmitRequest{ClientID: "dev-l"}), &result)
	require.True(t, result.Granted)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/nets/net-1/hail/listener/revoke", commander, nil).Code)
	assert.Nil(t, f.arbiter.Get("net-1"))
	assert.False(t, f.hail.IsSpeaker("net-1", "listener"))

	// Yetkisi kalmayan kullanıcının elindeki authority heartbeat ile uzamaz.
	f.arbiter.Claim(context.Background(), "net-1", "listener", "dev-l")
	f.clock.Add(20 * time.Second)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/heartbeat", listener, nil).Code)
	f.clock.Add(20 * time.Second)
	assert.Nil(t, f.arbiter.Get("net-1"))
}

func TestHailHandler_Flow(t *testing.T) {
	f := newFixture(t, false)

	var snap models.HailSnapshot
	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/hail", listener, nil), &snap)
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, "listener", snap.Pending[0].UserID)

	rec := f.do(t, http.MethodPost, "/api/nets/net-1/hail/listener/grant", listener, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	decode(t, f.do(t, http.MethodPost, "/api/nets/net-1/hail/listener/grant", commander, nil), &snap)
	assert.Empty(t, snap.Pending)
	assert.Equal(t, []string{"listener"}, snap.ActiveSpeakers)

	decode(t, f.do(t, http.MethodGet, "/api/nets/net-1/hail", listener, nil), &snap)
	assert.Equal(t, []string{"listener"}, snap.ActiveSpeakers)
}

func TestHailHandler_RateLimited(t *testing.T) {
	f := newFixture(t, false)

	for _, net := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/nets/"+net+"/hail", listener, nil).Code)
	}
	rec := f.do(t, http.MethodPost, "/api/nets/d/hail", listener, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCommandBusHandler_SetAndGet(t *testing.T) {
	f := newFixture(t, false)

	entries := []models.CommandEntry{
		{Type: models.CommandPriorityOverride, NetID: "net-1"},
		{Type: models.CommandSilenceUntilCleared, NetID: "net-2"},
	}
	rec := f.do(t, http.MethodPut, "/api/command-bus", commander, models.CommandBusRequest{Entries: entries})
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.CommandEntry
	decode(t, f.do(t, http.MethodGet, "/api/command-bus", listener, nil), &got)
	assert.Equal(t, entries, got)

	rec = f.do(t, http.MethodPut, "/api/command-bus", commander, models.CommandBusRequest{
		Entries: []models.CommandEntry{{NetID: "net-1"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandBusHandler_AppendAndForNet(t *testing.T) {
	f := newFixture(t, false)

	for _, net := range []string{"net-1", "net-2", "net-1"} {
		rec := f.do(t, http.MethodPost, "/api/command-bus/entries", commander,
			models.CommandEntry{Type: models.CommandPriorityOverride, NetID: net})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	// max=2: ilk entry düşer.
	var all []models.CommandEntry
	decode(t, f.do(t, http.MethodGet, "/api/command-bus", listener, nil), &all)
	require.Len(t, all, 2)
	assert.Equal(t, "net-2", all[0].NetID)
	assert.Equal(t, "net-1", all[1].NetID)

	var forNet []models.CommandEntry
	decode(t, f.do(t, http.MethodGet, "/api/nets/net-1/command-bus", listener, nil), &forNet)
	assert.Len(t, forNet, 1)

	decode(t, f.do(t, http.MethodGet, "/api/nets/net-9/command-bus", listener, nil), &forNet)
	assert.Empty(t, forNet)

	rec := f.do(t, http.MethodPost, "/api/command-bus/entries", commander, models.CommandEntry{NetID: "net-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeOnline []string

func (o fakeOnline) GetOnlineUserIDs() []string { return o }

func TestHealthHandler_Check(t *testing.T) {
	h := NewHealthHandler("node-1", "local", fakeOnline{"a", "b"})
	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	decode(t, rec, &out)
	assert.Equal(t, "node-1", out["instance_id"])
	assert.Equal(t, float64(2), out["online_users"])
}
