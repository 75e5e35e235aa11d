// Package archive persists generated session recaps in PostgreSQL. The
// archive is optional: the CLI only touches it when a DSN is configured.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/lorequill/internal/recap"
)

// Schema is the SQL DDL for the session_recaps table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS session_recaps (
    id            BIGSERIAL PRIMARY KEY,
    campaign      TEXT NOT NULL DEFAULT '',
    session_title TEXT NOT NULL,
    session_date  TIMESTAMPTZ,
    document      JSONB NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_session_recaps_campaign ON session_recaps(campaign);
CREATE INDEX IF NOT EXISTS idx_session_recaps_date ON session_recaps(session_date);
`

// ErrNotFound is returned when no recap exists under the requested id.
var ErrNotFound = errors.New("archive: recap not found")

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL recap archive. The recap document is stored as
// JSONB; header fields are lifted into columns for listing and filtering.
type Store struct {
	db DB
}

// NewStore creates a [Store] over the given connection or pool. The caller
// is responsible for calling [Store.Migrate] before issuing queries.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL, creating the session_recaps table and
// indexes if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// Save inserts a recap and returns its assigned id.
func (s *Store) Save(ctx context.Context, campaign string, doc *recap.SessionRecap) (int64, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("archive: marshal recap: %w", err)
	}

	const query = `
		INSERT INTO session_recaps (campaign, session_title, session_date, document)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var date any
	if !doc.Header.Date.IsZero() {
		date = doc.Header.Date
	}

	var id int64
	if err := s.db.QueryRow(ctx, query, campaign, doc.Header.SessionTitle, date, raw).Scan(&id); err != nil {
		return 0, fmt.Errorf("archive: save: %w", err)
	}
	return id, nil
}

// Get loads the recap stored under id. Returns [ErrNotFound] when no such
// row exists.
func (s *Store) Get(ctx context.Context, id int64) (*recap.SessionRecap, error) {
	const query = `SELECT document FROM session_recaps WHERE id = $1`

	var raw []byte
	if err := s.db.QueryRow(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: get %d: %w", id, err)
	}

	var doc recap.SessionRecap
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("archive: decode recap %d: %w", id, err)
	}
	return &doc, nil
}

// Entry is one row of a listing, without the full document.
type Entry struct {
	ID           int64
	Campaign     string
	SessionTitle string
	SessionDate  time.Time
	CreatedAt    time.Time
}

// List returns up to limit archive entries for a campaign, newest first.
// An empty campaign lists across all campaigns.
func (s *Store) List(ctx context.Context, campaign string, limit int) ([]Entry, error) {
	const query = `
		SELECT id, campaign, session_title, COALESCE(session_date, 'epoch'::timestamptz), created_at
		FROM session_recaps
		WHERE ($1 = '' OR campaign = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, campaign, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Campaign, &e.SessionTitle, &e.SessionDate, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("archive: scan row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate rows: %w", err)
	}
	return out, nil
}
