// Package audit records payloads the gateway refused to forward, so an
// operator can see which devices or clients are sending bad data.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// Kind classifies why a payload was rejected.
type Kind string

// Rejection kinds.
const (
	KindMissingProtocol Kind = "missing_protocol"
	KindUnknownProtocol Kind = "unknown_protocol"
	KindSchemaViolation Kind = "schema_violation"
	KindMalformed       Kind = "malformed"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMissingProtocol, KindUnknownProtocol, KindSchemaViolation, KindMalformed:
		return true
	}
	return false
}

// KindOf maps a validation error to its rejection kind. Errors that are not
// validation outcomes are reported as malformed input.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, protocol.ErrMissingProtocol):
		return KindMissingProtocol
	case errors.Is(err, protocol.ErrUnknownProtocol):
		return KindUnknownProtocol
	case errors.Is(err, protocol.ErrSchemaViolation):
		return KindSchemaViolation
	default:
		return KindMalformed
	}
}

// timeFormat is fixed-width so created_at sorts and compares as text.
const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

// List limits.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Rejection is one refused payload.
type Rejection struct {
	ID        string    `json:"id"`
	Direction string    `json:"direction"`
	Protocol  string    `json:"protocol,omitempty"`
	Kind      Kind      `json:"kind"`
	Detail    string    `json:"detail"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which rejections List returns.
type Filter struct {
	Direction string // optional
	Protocol  string // optional
	Kind      Kind   // optional
	Since     time.Time
	Limit     int // default 50, max 200
	Offset    int
}

// ListResult is one page of rejections.
type ListResult struct {
	Rejections []Rejection `json:"rejections"`
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// Repository stores rejections.
type Repository interface {
	Create(ctx context.Context, r *Rejection) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// SQLiteRepository keeps rejections in the rejections table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a rejection repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create inserts a rejection. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rej *Rejection) error {
	if !rej.Kind.Valid() {
		return fmt.Errorf("inserting rejection: invalid kind %q", rej.Kind)
	}
	if rej.ID == "" {
		rej.ID = "rej-" + uuid.NewString()
	}
	if rej.CreatedAt.IsZero() {
		rej.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rejections (id, direction, protocol, kind, detail, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rej.ID, rej.Direction, rej.Protocol, string(rej.Kind),
		rej.Detail, rej.Payload,
		rej.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting rejection: %w", err)
	}
	return nil
}

// List returns rejections matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Direction != "" {
		conditions = append(conditions, "direction = ?")
		args = append(args, filter.Direction)
	}
	if filter.Protocol != "" {
		conditions = append(conditions, "protocol = ?")
		args = append(args, filter.Protocol)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM rejections " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting rejections: %w", err)
	}

	query := "SELECT id, direction, protocol, kind, detail, payload, created_at FROM rejections " + //nolint:gosec // as above
		where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rejections: %w", err)
	}
	defer rows.Close()

	rejections := []Rejection{}
	for rows.Next() {
		var rej Rejection
		var kind, createdAt string
		if err := rows.Scan(&rej.ID, &rej.Direction, &rej.Protocol, &kind,
			&rej.Detail, &rej.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning rejection: %w", err)
		}
		rej.Kind = Kind(kind)

		rej.CreatedAt, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing rejection timestamp %q: %w", createdAt, err)
		}
		rejections = append(rejections, rej)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rejections: %w", err)
	}

	return &ListResult{
		Rejections: rejections,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// Prune deletes rejections created before olderThan and reports how many
// were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM rejections WHERE created_at < ?",
		olderThan.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning rejections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning rejections: %w", err)
	}
	return n, nil
}
