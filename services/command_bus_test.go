package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg/replicator"
	"github.com/akinalp/nexus/ws"
)

func TestCommandBus_SetPreservesOrder(t *testing.T) {
	pub := &recordingPublisher{}
	rep := replicator.New("test", nil, newMemStore(), zap.NewNop(), nil)
	bus := NewCommandBus(rep, pub, zap.NewNop())

	entries := []models.CommandEntry{
		{Type: models.CommandPriorityOverride, NetID: "net-command"},
		{Type: models.CommandSilenceUntilCleared, NetID: "net-command"},
	}
	bus.Set(context.Background(), entries)

	assert.Equal(t, entries, bus.Get())

	updates := pub.ops(ws.OpCommandBusUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, entries, updates[0].Event.Data.(ws.CommandBusUpdateData).Entries)
}

func TestCommandBus_SetReplacesWholesale(t *testing.T) {
	rep := replicator.New("test", nil, nil, zap.NewNop(), nil)
	bus := NewCommandBus(rep, nil, zap.NewNop())
	ctx := context.Background()

	bus.Set(ctx, []models.CommandEntry{
		{Type: models.CommandPriorityOverride, NetID: "net-a"},
		{Type: models.CommandPriorityOverride, NetID: "net-b"},
	})
	bus.Set(ctx, []models.CommandEntry{{Type: models.CommandSilenceUntilCleared, NetID: "net-c"}})

	assert.Equal(t, []models.CommandEntry{{Type: models.CommandSilenceUntilCleared, NetID: "net-c"}}, bus.Get())

	bus.Set(ctx, nil)
	assert.Empty(t, bus.Get())
}

func TestCommandBus_GetReturnsCopy(t *testing.T) {
	rep := replicator.New("test", nil, nil, zap.NewNop(), nil)
	bus := NewCommandBus(rep, nil, zap.NewNop())

	bus.Set(context.Background(), []models.CommandEntry{{Type: models.CommandPriorityOverride, NetID: "net-a"}})
	got := bus.Get()
	got[0].NetID = "tampered"

	assert.Equal(t, "net-a", bus.Get()[0].NetID)
}

func TestCommandBus_AppendKeepsMostRecent(t *testing.T) {
	rep := replicator.New("test", nil, nil, zap.NewNop(), nil)
	bus := NewCommandBus(rep, nil, zap.NewNop())
	ctx := context.Background()

	for _, net := range []string{"net-a", "net-b", "net-c"} {
		bus.Append(ctx, models.CommandEntry{Type: models.CommandPriorityOverride, NetID: net}, 2)
	}

	got := bus.Get()
	require.Len(t, got, 2)
	assert.Equal(t, "net-b", got[0].NetID)
	assert.Equal(t, "net-c", got[1].NetID)
	assert.Len(t, bus.ForNet("net-c"), 1)
	assert.Empty(t, bus.ForNet("net-a"))
}

func TestCommandBus_LoadsPersistedSnapshot(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	entries := []models.CommandEntry{
		{Type: models.CommandSilenceUntilCleared, NetID: "net-command", Payload: map[string]any{"reason": "brief"}},
	}

	first := NewCommandBus(replicator.New("a", nil, store, zap.NewNop(), nil), nil, zap.NewNop())
	first.Set(ctx, entries)

	second := NewCommandBus(replicator.New("b", nil, store, zap.NewNop(), nil), nil, zap.NewNop())
	assert.Equal(t, entries, second.Get())
}

func TestCommandBus_RemoteSnapshotApplied(t *testing.T) {
	ctx := context.Background()
	bus := replicator.NewLocalBus()
	pub := &recordingPublisher{}

	repA := replicator.New("replica-a", bus.Endpoint(), nil, zap.NewNop(), nil)
	repB := replicator.New("replica-b", bus.Endpoint(), nil, zap.NewNop(), nil)
	repA.Start(ctx)
	repB.Start(ctx)

	a := NewCommandBus(repA, nil, zap.NewNop())
	b := NewCommandBus(repB, pub, zap.NewNop())

	entries := []models.CommandEntry{{Type: models.CommandPriorityOverride, NetID: "net-command"}}
	a.Set(ctx, entries)

	assert.Equal(t, entries, b.Get())
	assert.Len(t, pub.ops(ws.OpCommandBusUpdate), 1)
}
