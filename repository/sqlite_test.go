package repository

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/database"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	require.NoError(t, err)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), migrations, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestVoiceNetRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteVoiceNetRepo(newTestDB(t).Conn)

	nets := []models.VoiceNet{
		{ID: "n1", EventID: strPtr("ev-1"), Code: "ALPHA", Label: "Alpha", Priority: 1, CreatedAt: created},
		{ID: "n2", EventID: strPtr("ev-1"), Code: "COMMAND", Label: "Command", StageMode: true, Priority: 10, CreatedAt: created},
		{ID: "n3", Code: "GUARD", Label: "Guard", CreatedAt: created},
	}
	for i := range nets {
		require.NoError(t, repo.Create(ctx, &nets[i]))
	}

	got, err := repo.GetByID(ctx, "n2")
	require.NoError(t, err)
	assert.True(t, got.StageMode)
	require.NotNil(t, got.EventID)
	assert.Equal(t, "ev-1", *got.EventID)
	assert.True(t, got.CreatedAt.Equal(created))

	list, err := repo.List(ctx, "ev-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "COMMAND", list[0].Code, "higher priority first")

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, pkg.ErrNotFound))

	dup := models.VoiceNet{ID: "n4", EventID: strPtr("ev-1"), Code: "ALPHA", Label: "x", CreatedAt: created}
	assert.ErrorIs(t, repo.Create(ctx, &dup), pkg.ErrAlreadyExists)
}

func TestNetPatchRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteNetPatchRepo(newTestDB(t).Conn)

	p1 := models.NetPatch{
		ID: "p1", EventID: strPtr("ev-1"), SourceNetID: "A", DestinationNetID: "B",
		Status: models.PatchStatusActive, CreatedBy: "u1", CreatedAt: created,
	}
	p2 := models.NetPatch{
		ID: "p2", EventID: strPtr("ev-2"), SourceNetID: "C", DestinationNetID: "D", IsBidirectional: true,
		Status: models.PatchStatusActive, CreatedBy: "u1", CreatedAt: created.Add(time.Second),
	}
	require.NoError(t, repo.Create(ctx, &p1))
	require.NoError(t, repo.Create(ctx, &p2))

	active, err := repo.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	active, err = repo.ListActive(ctx, "ev-2")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].IsBidirectional)

	at := created.Add(time.Minute)
	require.NoError(t, repo.Terminate(ctx, "p1", at))
	// İkinci terminate no-op.
	require.NoError(t, repo.Terminate(ctx, "p1", at.Add(time.Minute)))

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PatchStatusTerminated, got.Status)
	require.NotNil(t, got.TerminatedAt)
	assert.True(t, got.TerminatedAt.Equal(at))

	active, err = repo.ListActive(ctx, "ev-1")
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err := repo.ListByEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.ErrorIs(t, repo.Terminate(ctx, "missing", at), pkg.ErrNotFound)
}

func TestStateCacheRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteStateCacheRepo(newTestDB(t).Conn)

	_, err := repo.Get(ctx, "tx_authority_map")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	require.NoError(t, repo.Set(ctx, "tx_authority_map", []byte(`{"a":1}`)))
	require.NoError(t, repo.Set(ctx, "tx_authority_map", []byte(`{"b":2}`)))

	v, err := repo.Get(ctx, "tx_authority_map")
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(v))

	require.NoError(t, repo.Delete(ctx, "tx_authority_map"))
	_, err = repo.Get(ctx, "tx_authority_map")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}
