package services

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
	"github.com/akinalp/nexus/repository"
)

// countingNetRepo, GetByID çağrılarını sayan VoiceNetRepository sarmalayıcısı.
type countingNetRepo struct {
	repository.VoiceNetRepository
	gets int
}

func (r *countingNetRepo) GetByID(ctx context.Context, id string) (*models.VoiceNet, error) {
	r.gets++
	return r.VoiceNetRepository.GetByID(ctx, id)
}

var netManager = &models.TokenClaims{UserID: "cmdr-1", Permissions: models.PermManageNets}

func TestNetService_CreateGetList(t *testing.T) {
	db := newTestDB(t)
	repo := &countingNetRepo{VoiceNetRepository: repository.NewSQLiteVoiceNetRepo(db.Conn)}
	clk := clock.NewMock()
	svc := NewNetService(repo, clk, time.Minute, zap.NewNop())
	t.Cleanup(svc.Close)
	ctx := context.Background()

	cmd, err := svc.Create(ctx, netManager, &models.CreateNetRequest{EventID: "ev-1", Code: " command ", Label: "Command", StageMode: true, Priority: 10})
	require.NoError(t, err)
	assert.Equal(t, "COMMAND", cmd.Code)
	assert.True(t, cmd.StageMode)

	_, err = svc.Create(ctx, netManager, &models.CreateNetRequest{EventID: "ev-1", Code: "ALPHA", Label: "Alpha", Priority: 1})
	require.NoError(t, err)

	nets, err := svc.List(ctx, "ev-1")
	require.NoError(t, err)
	require.Len(t, nets, 2)
	assert.Equal(t, "COMMAND", nets[0].Code, "higher priority first")

	got, err := svc.GetByID(ctx, cmd.ID)
	require.NoError(t, err)
	assert.Equal(t, "Command", got.Label)
	assert.Equal(t, 0, repo.gets, "served from cache")

	clk.Add(2 * time.Minute)
	_, err = svc.GetByID(ctx, cmd.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)
}

func TestNetService_Errors(t *testing.T) {
	db := newTestDB(t)
	svc := NewNetService(repository.NewSQLiteVoiceNetRepo(db.Conn), clock.NewMock(), time.Minute, zap.NewNop())
	t.Cleanup(svc.Close)
	ctx := context.Background()

	_, err := svc.Create(ctx, plainMember, &models.CreateNetRequest{Code: "ALPHA"})
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	_, err = svc.Create(ctx, netManager, &models.CreateNetRequest{Code: "  "})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = svc.Create(ctx, netManager, &models.CreateNetRequest{Code: "ALPHA"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, netManager, &models.CreateNetRequest{Code: "alpha"})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)

	_, err = svc.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}
