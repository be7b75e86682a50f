package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
	calls   chan struct{}
}

func (f *fakeRepo) Create(context.Context, *Rejection) error { return nil }

func (f *fakeRepo) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

func (f *fakeRepo) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	f.cutoffs = append(f.cutoffs, olderThan)
	f.mu.Unlock()
	if f.calls != nil {
		f.calls <- struct{}{}
	}
	return 2, f.err
}

type captureLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *captureLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}

func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func TestPruner_PruneOnce(t *testing.T) {
	repo := &fakeRepo{}
	p := NewPruner(repo, 24*time.Hour, 0, nil)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.PruneOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Equal(t, []time.Time{now.Add(-24 * time.Hour)}, repo.cutoffs)
	require.Equal(t, DefaultPruneInterval, p.interval)
}

func TestPruner_RunTicksUntilCancelled(t *testing.T) {
	repo := &fakeRepo{calls: make(chan struct{}, 8)}
	logger := &captureLogger{}
	p := NewPruner(repo, time.Hour, 10*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-repo.calls:
		case <-time.After(time.Second):
			t.Fatal("expected prune call")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.NotEmpty(t, logger.infos)
}

func TestPruner_RunLogsErrors(t *testing.T) {
	repo := &fakeRepo{err: errors.New("locked"), calls: make(chan struct{}, 8)}
	logger := &captureLogger{}
	p := NewPruner(repo, time.Hour, time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	<-repo.calls
	cancel()
	<-done

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.Equal(t, []string{"pruning rejections failed"}, logger.errors)
}

func TestPruner_ZeroRetentionDisabled(t *testing.T) {
	repo := &fakeRepo{}
	p := NewPruner(repo, 0, time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero retention should return immediately")
	}
	require.Empty(t, repo.cutoffs)
}
