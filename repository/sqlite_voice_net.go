package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/akinalp/nexus/database"
	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
)

type sqliteVoiceNetRepo struct {
	db database.TxQuerier
}

// NewSQLiteVoiceNetRepo, constructor.
func NewSQLiteVoiceNetRepo(db database.TxQuerier) VoiceNetRepository {
	return &sqliteVoiceNetRepo{db: db}
}

func (r *sqliteVoiceNetRepo) Create(ctx context.Context, net *models.VoiceNet) error {
	query := `
		INSERT INTO voice_nets (id, event_id, code, label, stage_mode, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		net.ID, net.EventID, net.Code, net.Label, net.StageMode, net.Priority, net.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: net code %s", pkg.ErrAlreadyExists, net.Code)
		}
		return fmt.Errorf("failed to create voice net: %w", err)
	}
	return nil
}

func (r *sqliteVoiceNetRepo) GetByID(ctx context.Context, id string) (*models.VoiceNet, error) {
	query := `
		SELECT id, event_id, code, label, stage_mode, priority, created_at
		FROM voice_nets WHERE id = ?`

	net, err := scanVoiceNet(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voice net: %w", err)
	}
	return net, nil
}

func (r *sqliteVoiceNetRepo) List(ctx context.Context, eventID string) ([]models.VoiceNet, error) {
	query := `
		SELECT id, event_id, code, label, stage_mode, priority, created_at
		FROM voice_nets
		WHERE (? = '' OR event_id = ?)
		ORDER BY priority DESC, code ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list voice nets: %w", err)
	}
	defer rows.Close()

	nets := make([]models.VoiceNet, 0)
	for rows.Next() {
		net, err := scanVoiceNet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voice net: %w", err)
		}
		nets = append(nets, *net)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate voice nets: %w", err)
	}
	return nets, nil
}

// rowScanner, *sql.Row ve *sql.Rows için ortak Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoiceNet(row rowScanner) (*models.VoiceNet, error) {
	var net models.VoiceNet
	var eventID sql.NullString

	if err := row.Scan(
		&net.ID, &eventID, &net.Code, &net.Label, &net.StageMode, &net.Priority, &net.CreatedAt,
	); err != nil {
		return nil, err
	}
	if eventID.Valid {
		net.EventID = &eventID.String
	}
	return &net, nil
}
