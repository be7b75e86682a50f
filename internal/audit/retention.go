package audit

import (
	"context"
	"time"
)

// DefaultPruneInterval is how often the Pruner runs when no interval is given.
const DefaultPruneInterval = time.Hour

// Logger is the logging interface the Pruner needs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Pruner deletes rejections older than a retention window on a fixed
// interval.
type Pruner struct {
	repo      Repository
	retention time.Duration
	interval  time.Duration
	logger    Logger
	now       func() time.Time
}

// NewPruner creates a Pruner. A non-positive interval uses
// DefaultPruneInterval; a nil logger discards output.
func NewPruner(repo Repository, retention, interval time.Duration, logger Logger) *Pruner {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pruner{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// PruneOnce deletes rejections older than the retention window.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	return p.repo.Prune(ctx, p.now().Add(-p.retention))
}

// Run prunes immediately and then every interval until ctx is cancelled.
// A zero retention disables pruning and Run returns at once.
func (p *Pruner) Run(ctx context.Context) {
	if p.retention <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		n, err := p.PruneOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			p.logger.Error("pruning rejections failed", "error", err)
		case n > 0:
			p.logger.Info("pruned rejections", "deleted", n, "retention", p.retention)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
