package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akinalp/nexus/database"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
)

type sqliteNetPatchRepo struct {
	db database.TxQuerier
}

// NewSQLiteNetPatchRepo, constructor. db bir *sql.Tx de olabilir:
// PatchService loop kontrolü + insert'i tek transaction'da yapar.
func NewSQLiteNetPatchRepo(db database.TxQuerier) NetPatchRepository {
	return &sqliteNetPatchRepo{db: db}
}

const patchColumns = `id, event_id, source_net_id, destination_net_id, is_bidirectional,
	status, created_by, created_at, terminated_at`

func (r *sqliteNetPatchRepo) Create(ctx context.Context, patch *models.NetPatch) error {
	query := `
		INSERT INTO net_patches (` + patchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		patch.ID, patch.EventID, patch.SourceNetID, patch.DestinationNetID, patch.IsBidirectional,
		patch.Status, patch.CreatedBy, patch.CreatedAt, patch.TerminatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create net patch: %w", err)
	}
	return nil
}

func (r *sqliteNetPatchRepo) GetByID(ctx context.Context, id string) (*models.NetPatch, error) {
	query := `SELECT ` + patchColumns + ` FROM net_patches WHERE id = ?`

	patch, err := scanNetPatch(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get net patch: %w", err)
	}
	return patch, nil
}

func (r *sqliteNetPatchRepo) ListActive(ctx context.Context, eventID string) ([]models.NetPatch, error) {
	query := `
		SELECT ` + patchColumns + ` FROM net_patches
		WHERE status = 'active' AND (? = '' OR event_id = ?)
		ORDER BY created_at ASC`

	return r.list(ctx, query, eventID, eventID)
}

func (r *sqliteNetPatchRepo) ListByEvent(ctx context.Context, eventID string) ([]models.NetPatch, error) {
	query := `
		SELECT ` + patchColumns + ` FROM net_patches
		WHERE event_id = ?
		ORDER BY created_at ASC`

	return r.list(ctx, query, eventID)
}

func (r *sqliteNetPatchRepo) Terminate(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE net_patches SET status = 'terminated', terminated_at = ?
		 WHERE id = ? AND status = 'active'`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to terminate net patch: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// 0 satır: ya yok ya zaten terminated.
	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM net_patches WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check net patch: %w", err)
	}
	if exists == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteNetPatchRepo) list(ctx context.Context, query string, args ...any) ([]models.NetPatch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list net patches: %w", err)
	}
	defer rows.Close()

	patches := make([]models.NetPatch, 0)
	for rows.Next() {
		patch, err := scanNetPatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan net patch: %w", err)
		}
		patches = append(patches, *patch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate net patches: %w", err)
	}
	return patches, nil
}

func scanNetPatch(row rowScanner) (*models.NetPatch, error) {
	var p models.NetPatch
	var eventID sql.NullString
	var terminatedAt sql.NullTime

	if err := row.Scan(
		&p.ID, &eventID, &p.SourceNetID, &p.DestinationNetID, &p.IsBidirectional,
		&p.Status, &p.CreatedBy, &p.CreatedAt, &terminatedAt,
	); err != nil {
		return nil, err
	}
	if eventID.Valid {
		p.EventID = &eventID.String
	}
	if terminatedAt.Valid {
		p.TerminatedAt = &terminatedAt.Time
	}
	return &p, nil
}
