// Package reconcile verifies that every wallet balance equals the sum of its
// journal entries.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/metrics"
)

// Job runs one read-only reconcile pass.
type Job struct {
	store   ledger.Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewJob constructs a reconcile job.
func NewJob(store ledger.Store, logger *slog.Logger) *Job {
	return &Job{store: store, timeout: time.Minute, logger: logger}
}

// Run returns the wallets whose balance drifted from the journal.
func (j *Job) Run(ctx context.Context) ([]ledger.Drift, error) {
	start := time.Now()
	drifts, err := j.store.Reconcile(ctx)
	metrics.RecordReconcile(len(drifts), err == nil, time.Since(start))
	if err != nil {
		j.logger.Error("reconcile failed", "error", err)
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	for _, d := range drifts {
		j.logger.Error("journal drift",
			"wallet_id", d.WalletID,
			"owner_id", d.OwnerID,
			"balance", d.Balance.String(),
			"journal_sum", d.JournalSum.String(),
		)
	}
	j.logger.Debug("reconcile finished", "drifted", len(drifts), "duration", time.Since(start))
	return drifts, nil
}

// Scheduler triggers Job on a cron spec.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers job under spec. An empty spec yields a scheduler
// that never fires.
func NewScheduler(spec string, job *Job, logger *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if spec != "" {
		if _, err := c.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), job.timeout)
			defer cancel()
			_, _ = job.Run(ctx)
		}); err != nil {
			return nil, fmt.Errorf("schedule reconcile %q: %w", spec, err)
		}
	}
	return &Scheduler{cron: c}, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running pass or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Entries reports how many schedules are registered.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
