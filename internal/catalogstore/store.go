// Package catalogstore keeps every protocol catalog the gateway has
// accepted, so a catalog pushed through the API survives restarts and can
// be inspected or rolled back later.
package catalogstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// timeFormat is fixed-width so created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

// Source labels for stored revisions.
const (
	SourceAPI      = "api"
	SourceFile     = "file"
	SourceEmbedded = "embedded"
)

// Revision is one stored catalog.
type Revision struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Protocols int               `json:"protocols"`
	CreatedAt time.Time         `json:"created_at"`
	Catalog   *protocol.Catalog `json:"catalog,omitempty"`
}

// Store persists catalog revisions in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a Store on an already-migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save stores cat as a new revision.
func (s *Store) Save(ctx context.Context, cat *protocol.Catalog, source string) (*Revision, error) {
	if cat == nil || cat.Protocols == nil {
		return nil, fmt.Errorf("saving revision: catalog has no protocols list")
	}

	doc, err := json.Marshal(cat)
	if err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}

	rev := &Revision{
		ID:        uuid.NewString(),
		Source:    source,
		Protocols: len(cat.Protocols),
		CreatedAt: s.now().UTC(),
		Catalog:   cat,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO catalog_revisions (id, source, document, protocol_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rev.ID, rev.Source, string(doc), rev.Protocols, rev.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting revision: %w", err)
	}
	return rev, nil
}

// Latest returns the most recently saved revision with its catalog.
func (s *Store) Latest(ctx context.Context) (*Revision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, document, protocol_count, created_at
		 FROM catalog_revisions ORDER BY created_at DESC, rowid DESC LIMIT 1`)

	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRevision
	}
	return rev, err
}

// Get returns one revision with its catalog.
func (s *Store) Get(ctx context.Context, id string) (*Revision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, document, protocol_count, created_at
		 FROM catalog_revisions WHERE id = ?`, id)

	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRevisionNotFound, id)
	}
	return rev, err
}

// List returns revision summaries, newest first. Catalogs are not loaded.
// A non-positive limit returns every revision.
func (s *Store) List(ctx context.Context, limit int) ([]Revision, error) {
	query := `SELECT id, source, protocol_count, created_at
		FROM catalog_revisions ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying revisions: %w", err)
	}
	defer rows.Close()

	revs := []Revision{}
	for rows.Next() {
		var rev Revision
		var createdAt string
		if err := rows.Scan(&rev.ID, &rev.Source, &rev.Protocols, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		if rev.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parsing revision timestamp %q: %w", createdAt, err)
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revisions: %w", err)
	}
	return revs, nil
}

// Loader returns a protocol.Loader serving the latest revision. It fails
// with ErrNoRevision (wrapped in protocol.ErrLoad by NewRegistry) when the
// store is empty.
func (s *Store) Loader() protocol.Loader {
	return protocol.LoaderFunc(func(ctx context.Context) (*protocol.Catalog, error) {
		rev, err := s.Latest(ctx)
		if err != nil {
			return nil, err
		}
		return rev.Catalog, nil
	})
}

func scanRevision(row *sql.Row) (*Revision, error) {
	var (
		rev       Revision
		doc       string
		createdAt string
	)
	if err := row.Scan(&rev.ID, &rev.Source, &doc, &rev.Protocols, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning revision: %w", err)
	}

	var err error
	if rev.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parsing revision timestamp %q: %w", createdAt, err)
	}

	rev.Catalog, err = protocol.ParseCatalog([]byte(doc), protocol.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding revision %s: %w", rev.ID, err)
	}
	return &rev, nil
}
