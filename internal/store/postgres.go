package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sowdiff/api/internal/revdiff"
	"sowdiff/api/internal/util"
)

// ErrSnapshotNotFound is returned (wrapped) when a snapshot id does not resolve.
var ErrSnapshotNotFound = errors.New("snapshot not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (revdiff.Snapshot, error) {
	const query = `
		SELECT id, document_id, version, status, created_at, fields
		FROM sow_snapshots
		WHERE id = $1
	`
	var (
		snapshot revdiff.Snapshot
		fields   []byte
	)
	err := s.db.QueryRowContext(ctx, query, strings.TrimSpace(id)).Scan(
		&snapshot.ID,
		&snapshot.DocumentID,
		&snapshot.Version,
		&snapshot.Status,
		&snapshot.CreatedAt,
		&fields,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return revdiff.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	if err := json.Unmarshal(fields, &snapshot.Fields); err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("decode snapshot %s fields: %w", id, err)
	}
	snapshot.CreatedAt = snapshot.CreatedAt.UTC()
	return snapshot, nil
}

// InsertSnapshot captures a new immutable snapshot. ID and Version are assigned
// when left empty; CreatedAt is always set by the database.
func (s *PostgresStore) InsertSnapshot(ctx context.Context, snapshot revdiff.Snapshot) (revdiff.Snapshot, error) {
	if strings.TrimSpace(snapshot.DocumentID) == "" {
		return revdiff.Snapshot{}, fmt.Errorf("insert snapshot: document id is required")
	}
	if snapshot.ID == "" {
		snapshot.ID = util.NewID("snap")
	}
	if snapshot.Status == "" {
		snapshot.Status = "draft"
	}
	fields, err := json.Marshal(snapshot.Fields)
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("encode snapshot fields: %w", err)
	}

	const insert = `
		INSERT INTO sow_snapshots (id, document_id, version, status, fields)
		VALUES (
			$1,
			$2,
			CASE WHEN $3::int > 0 THEN $3::int
				ELSE (SELECT COALESCE(MAX(version), 0) + 1 FROM sow_snapshots WHERE document_id = $2)
			END,
			$4,
			$5::json
		)
		RETURNING version, created_at
	`
	err = s.db.QueryRowContext(ctx, insert, snapshot.ID, snapshot.DocumentID, snapshot.Version, snapshot.Status, string(fields)).
		Scan(&snapshot.Version, &snapshot.CreatedAt)
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	snapshot.CreatedAt = snapshot.CreatedAt.UTC()
	return snapshot, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
