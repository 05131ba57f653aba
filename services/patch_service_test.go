package services

import (
	"context"
	"errors"
	"io/fs"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/database"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/pkg/metrics"
	"github.com/akinalp/nexus/repository"
	"github.com/akinalp/nexus/ws"
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

var (
	patchManager = &models.TokenClaims{UserID: "cmdr-1", Permissions: models.PermManagePatches}
	plainMember  = &models.TokenClaims{UserID: "member-1", Permissions: models.PermConnectVoice | models.PermSpeak}
)

func newTestPatchService(t *testing.T) (PatchService, *recordingPublisher) {
	t.Helper()
	db := newTestDB(t)
	pub := &recordingPublisher{}
	svc := NewPatchService(db.Conn, repository.NewSQLiteNetPatchRepo(db.Conn), pub, clock.NewMock(), zap.NewNop(), metrics.New())
	return svc, pub
}

func patchReq(source, dest string, bidirectional bool) *models.CreatePatchRequest {
	return &models.CreatePatchRequest{
		EventID:          "ev-1",
		SourceNetID:      source,
		DestinationNetID: dest,
		IsBidirectional:  bidirectional,
	}
}

func TestPatchService_RejectsBeforePersistence(t *testing.T) {
	db := newTestDB(t)
	svc := NewPatchService(db.Conn, repository.NewSQLiteNetPatchRepo(db.Conn), nil, clock.NewMock(), zap.NewNop(), nil)

	// Kapalı bağlantı: DB'ye dokunan her çağrı farklı bir hata dönerdi.
	require.NoError(t, db.Close())

	_, err := svc.CreatePatch(context.Background(), patchManager, patchReq("net-A", "net-A", false))
	assert.ErrorIs(t, err, pkg.ErrPatchLoop)

	_, err = svc.CreatePatch(context.Background(), patchManager, patchReq("net-A", "net-B", true))
	assert.ErrorIs(t, err, pkg.ErrPatchLoop)
}

func TestPatchService_CreateAndList(t *testing.T) {
	svc, pub := newTestPatchService(t)
	ctx := context.Background()

	patch, err := svc.CreatePatch(ctx, patchManager, patchReq("net-A", "net-B", false))
	require.NoError(t, err)
	assert.NotEmpty(t, patch.ID)
	assert.Equal(t, models.PatchStatusActive, patch.Status)
	assert.Equal(t, "cmdr-1", patch.CreatedBy)
	require.NotNil(t, patch.EventID)
	assert.Equal(t, "ev-1", *patch.EventID)

	active, err := svc.ListActive(ctx, "ev-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, patch.ID, active[0].ID)

	updates := pub.ops(ws.OpPatchUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, ws.ActionCreated, updates[0].Event.Data.(ws.PatchUpdateData).Action)
}

func TestPatchService_RejectsReverseAndCycle(t *testing.T) {
	svc, _ := newTestPatchService(t)
	ctx := context.Background()

	_, err := svc.CreatePatch(ctx, patchManager, patchReq("net-A", "net-B", false))
	require.NoError(t, err)
	_, err = svc.CreatePatch(ctx, patchManager, patchReq("net-B", "net-C", false))
	require.NoError(t, err)

	_, err = svc.CreatePatch(ctx, patchManager, patchReq("net-B", "net-A", false))
	assert.ErrorIs(t, err, pkg.ErrPatchLoop)

	_, err = svc.CreatePatch(ctx, patchManager, patchReq("net-C", "net-A", false))
	assert.ErrorIs(t, err, pkg.ErrPatchLoop)

	active, err := svc.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestPatchService_LoopCheckSpansEvents(t *testing.T) {
	svc, _ := newTestPatchService(t)
	ctx := context.Background()

	_, err := svc.CreatePatch(ctx, patchManager, patchReq("net-A", "net-B", false))
	require.NoError(t, err)

	other := patchReq("net-B", "net-A", false)
	other.EventID = "ev-2"
	_, err = svc.CreatePatch(ctx, patchManager, other)
	assert.ErrorIs(t, err, pkg.ErrPatchLoop)
}

func TestPatchService_Terminate(t *testing.T) {
	svc, pub := newTestPatchService(t)
	ctx := context.Background()

	patch, err := svc.CreatePatch(ctx, patchManager, patchReq("net-A", "net-B", false))
	require.NoError(t, err)

	terminated, err := svc.TerminatePatch(ctx, patchManager, patch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PatchStatusTerminated, terminated.Status)
	assert.NotNil(t, terminated.TerminatedAt)

	// İkinci terminate no-op, event gönderilmez.
	_, err = svc.TerminatePatch(ctx, patchManager, patch.ID)
	require.NoError(t, err)
	assert.Len(t, pub.ops(ws.OpPatchUpdate), 2)

	// Terminated patch artık loop kontrolünde sayılmaz.
	_, err = svc.CreatePatch(ctx, patchManager, patchReq("net-B", "net-A", false))
	assert.NoError(t, err)

	all, err := svc.ListByEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.TerminatePatch(ctx, patchManager, "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestPatchService_Permissions(t *testing.T) {
	svc, _ := newTestPatchService(t)
	ctx := context.Background()

	_, err := svc.CreatePatch(ctx, plainMember, patchReq("net-A", "net-B", false))
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	_, err = svc.CreatePatch(ctx, nil, patchReq("net-A", "net-B", false))
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	admin := &models.TokenClaims{UserID: "admin", Permissions: models.PermAdmin}
	patch, err := svc.CreatePatch(ctx, admin, patchReq("net-A", "net-B", false))
	require.NoError(t, err)

	_, err = svc.TerminatePatch(ctx, plainMember, patch.ID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestPatchService_Validation(t *testing.T) {
	svc, _ := newTestPatchService(t)
	ctx := context.Background()

	_, err := svc.CreatePatch(ctx, patchManager, patchReq("", "net-B", false))
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = svc.ListByEvent(ctx, "")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestPatchService_Check(t *testing.T) {
	svc, _ := newTestPatchService(t)
	ctx := context.Background()

	res, err := svc.Check(ctx, patchReq("net-A", "net-B", false))
	require.NoError(t, err)
	assert.False(t, res.Loop)

	_, err = svc.CreatePatch(ctx, patchManager, patchReq("net-A", "net-B", false))
	require.NoError(t, err)

	res, err = svc.Check(ctx, patchReq("net-B", "net-A", false))
	require.NoError(t, err)
	assert.True(t, res.Loop)
	assert.Contains(t, res.Reason, "reverse_of_active_patch")

	// Check hiçbir şey persist etmez.
	active, err := svc.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = svc.Check(ctx, &models.CreatePatchRequest{})
	assert.True(t, errors.Is(err, pkg.ErrBadRequest))
}

func TestPatchService_ConcurrentCreatesCloseOneCycle(t *testing.T) {
	svc, _ := newTestPatchService(t)
	ctx := context.Background()

	// net-0 → net-1 → ... → net-7 → net-0: son eklenen kenar her sırada cycle'ı kapatır.
	const ring = 8
	errs := make([]error, ring)
	var wg sync.WaitGroup
	for i := 0; i < ring; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("net-%d", i)
			dst := fmt.Sprintf("net-%d", (i+1)%ring)
			_, errs[i] = svc.CreatePatch(ctx, patchManager, patchReq(src, dst, false))
		}(i)
	}
	wg.Wait()

	created, loops := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, pkg.ErrPatchLoop):
			loops++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, ring-1, created)
	assert.Equal(t, 1, loops)

	active, err := svc.ListActive(ctx, "ev-1")
	require.NoError(t, err)
	assert.Len(t, active, ring-1)
}
