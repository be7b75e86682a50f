package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pilight-gateway/internal/infrastructure/database"
	"github.com/nerrad567/pilight-gateway/internal/protocol"
	_ "github.com/nerrad567/pilight-gateway/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return NewSQLiteRepository(db.DB)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{protocol.ErrMissingProtocol, KindMissingProtocol},
		{fmt.Errorf("%w %q", protocol.ErrUnknownProtocol, "x"), KindUnknownProtocol},
		{&protocol.SchemaError{Protocol: "daycom"}, KindSchemaViolation},
		{errors.New("invalid character"), KindMalformed},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			require.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rej := &Rejection{
		Direction: "send",
		Protocol:  "daycom",
		Kind:      KindSchemaViolation,
		Detail:    `protocol: schema violation for "daycom": unknown_field: not declared`,
		Payload:   `{"protocol":"daycom","unknown_field":1}`,
	}
	require.NoError(t, repo.Create(ctx, rej))
	require.NotEmpty(t, rej.ID, "ID should be generated")
	require.False(t, rej.CreatedAt.IsZero(), "CreatedAt should be generated")

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Len(t, res.Rejections, 1)

	got := res.Rejections[0]
	require.Equal(t, rej.ID, got.ID)
	require.Equal(t, rej.Kind, got.Kind)
	require.Equal(t, rej.Payload, got.Payload)
	require.WithinDuration(t, rej.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestSQLiteRepository_CreateRejectsUnknownKind(t *testing.T) {
	repo := setupTestRepo(t)
	err := repo.Create(context.Background(), &Rejection{Direction: "send", Kind: "bogus"})
	require.Error(t, err)
}

func TestSQLiteRepository_ListFilterAndOrder(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []Rejection{
		{Direction: "send", Protocol: "daycom", Kind: KindSchemaViolation, CreatedAt: base},
		{Direction: "receive", Protocol: "tfa", Kind: KindSchemaViolation, CreatedAt: base.Add(time.Minute)},
		{Direction: "send", Kind: KindMissingProtocol, CreatedAt: base.Add(2 * time.Minute)},
		{Direction: "send", Protocol: "nope", Kind: KindUnknownProtocol, CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string // protocol of the newest match
	}{
		{"all newest first", Filter{}, 4, "nope"},
		{"by direction", Filter{Direction: "receive"}, 1, "tfa"},
		{"by kind", Filter{Kind: KindSchemaViolation}, 2, "tfa"},
		{"by protocol", Filter{Protocol: "daycom"}, 1, "daycom"},
		{"since", Filter{Since: base.Add(2 * time.Minute)}, 2, "nope"},
		{"offset", Filter{Offset: 1, Limit: 1}, 4, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			require.Equal(t, tt.wantTotal, res.Total)
			require.NotEmpty(t, res.Rejections)
			require.Equal(t, tt.wantFirst, res.Rejections[0].Protocol)
		})
	}
}

func TestSQLiteRepository_ListClampsLimit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	res, err := repo.List(ctx, Filter{Limit: 10_000, Offset: -5})
	require.NoError(t, err)
	require.Equal(t, maxLimit, res.Limit)
	require.Equal(t, 0, res.Offset)
	require.NotNil(t, res.Rejections, "empty result should be an empty slice")

	res, err = repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, defaultLimit, res.Limit)
}

func TestSQLiteRepository_Prune(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &Rejection{Direction: "send", Kind: KindMalformed, CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, repo.Create(ctx, &Rejection{Direction: "send", Kind: KindMalformed, CreatedAt: now}))

	n, err := repo.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
}
