package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes records older than the retention window on a cron schedule.
type Pruner struct {
	store         *Store
	retentionDays int
	schedule      string
	cron          *cron.Cron
	logger        *slog.Logger
	mu            sync.Mutex
	running       bool
}

// NewPruner creates a pruner over the store.
func NewPruner(store *Store, retentionDays int, schedule string) *Pruner {
	return &Pruner{
		store:         store,
		retentionDays: retentionDays,
		schedule:      schedule,
		cron:          cron.New(),
		logger:        slog.Default().With("component", "history_pruner"),
	}
}

// Start schedules pruning and returns. An empty schedule disables the
// pruner.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.schedule == "" {
		p.logger.Info("prune schedule not configured, pruner disabled")
		return nil
	}
	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.schedule, err)
	}

	if _, err := p.cron.AddFunc(p.schedule, func() {
		p.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("history pruner started",
		"schedule", p.schedule,
		"retention_days", p.retentionDays,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("history pruner stopped")
}

// RunOnce prunes everything beyond the retention window.
func (p *Pruner) RunOnce(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -p.retentionDays)
	removed, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Error("history pruning failed", "error", err)
		return
	}
	if removed > 0 {
		p.logger.Info("history pruning completed", "removed", removed, "cutoff", cutoff)
	} else {
		p.logger.Debug("history pruning completed, nothing to remove")
	}
}
