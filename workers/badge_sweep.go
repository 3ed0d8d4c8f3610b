package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Sweeper is the one call the badge sweep needs; services.BadgeService fits.
type Sweeper interface {
	SweepAll(ctx context.Context) (int, error)
}

// BadgeSweepWorker periodically reconciles badges for every user, catching
// anyone whose activity predates a badge or was written by another path.
type BadgeSweepWorker struct {
	sweeper  Sweeper
	interval time.Duration
	sched    gocron.Scheduler
}

func NewBadgeSweepWorker(sweeper Sweeper, interval time.Duration) *BadgeSweepWorker {
	return &BadgeSweepWorker{sweeper: sweeper, interval: interval}
}

// Start schedules the sweep. Sweeps never overlap; a run still going when the
// next is due makes that one skip. ctx bounds every run.
func (w *BadgeSweepWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		log.Println("[BadgeSweep] Disabled (RECONCILE_INTERVAL=0)")
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.RunOnce(ctx) }),
		gocron.WithName("badge-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule badge sweep: %w", err)
	}
	sched.Start()
	w.sched = sched
	log.Printf("✅ Badge sweep scheduled every %s", w.interval)
	return nil
}

// RunOnce performs a single sweep and logs the outcome.
func (w *BadgeSweepWorker) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	awarded, err := w.sweeper.SweepAll(ctx)
	if err != nil {
		log.Printf("[BadgeSweep] Sweep failed after %d award(s): %v", awarded, err)
		return
	}
	if awarded > 0 {
		log.Printf("🎖️ [BadgeSweep] Awarded %d missing badge(s) in %s", awarded, time.Since(started).Round(time.Millisecond))
	}
}

// Stop waits for a running sweep to finish and shuts the scheduler down.
func (w *BadgeSweepWorker) Stop() error {
	if w.sched == nil {
		return nil
	}
	return w.sched.Shutdown()
}
