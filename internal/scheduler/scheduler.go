package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/logging"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

// Clock abstracts wall time so cycle behaviour is testable without sleeping
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// TriggerStore is the slice of the store the scheduler needs
type TriggerStore interface {
	ClaimDueTriggers(ctx context.Context, now time.Time, lease time.Duration) ([]models.Trigger, error)
	ReclaimExpiredTriggers(ctx context.Context, now time.Time) (int64, error)
	ListApprovedWithoutTrigger(ctx context.Context) ([]models.Post, error)
	RegisterTrigger(ctx context.Context, postID string, fireAt time.Time) error
}

// Dispatcher resolves one claimed trigger to a terminal outcome
type Dispatcher interface {
	Dispatch(ctx context.Context, trigger models.Trigger) error
}

// Config holds scheduler tunables
type Config struct {
	// PollInterval is the gap between cycles. Delivery precision is bounded
	// by it: a post due just after a tick waits for the next one.
	PollInterval time.Duration

	// Lease is how long a claimed trigger stays invisible to other claimers
	// before the reclaim path hands it back
	Lease time.Duration

	Clock Clock

	// Reclaims counts lease-expired triggers handed back (optional)
	Reclaims prometheus.Counter
}

// DefaultConfig returns scheduler defaults
func DefaultConfig() Config {
	return Config{
		PollInterval: 60 * time.Second,
		Lease:        5 * time.Minute,
	}
}

// Worker is the durable dispatch loop. Triggers live in the database, so a
// restart resumes exactly where the previous process stopped: overdue
// triggers are claimed on the first cycle after boot.
type Worker struct {
	store      TriggerStore
	dispatcher Dispatcher
	logger     logging.Logger
	clock      Clock
	interval   time.Duration
	lease      time.Duration
	reclaims   prometheus.Counter
}

// NewWorker creates a scheduler worker
func NewWorker(triggerStore TriggerStore, d Dispatcher, logger logging.Logger, cfg Config) *Worker {
	defaults := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaults.Lease
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &Worker{
		store:      triggerStore,
		dispatcher: d,
		logger:     logger,
		clock:      cfg.Clock,
		interval:   cfg.PollInterval,
		lease:      cfg.Lease,
		reclaims:   cfg.Reclaims,
	}
}

// Start runs the dispatch loop until ctx is cancelled. The first cycle runs
// immediately so triggers that came due while the process was down are
// dispatched without waiting out a full interval.
func (w *Worker) Start(ctx context.Context) {
	w.logger.WithFields(logging.Fields{
		"poll_interval": w.interval,
		"lease":         w.lease,
	}).Info("Starting dispatch scheduler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping dispatch scheduler")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// runCycle executes one poll: hand back lapsed leases, heal approvals that
// lost their trigger write, then claim and dispatch everything due. Each
// step degrades independently so one failing query does not stall the rest.
func (w *Worker) runCycle(ctx context.Context) {
	now := w.clock.Now()

	w.reclaimLapsed(ctx, now)
	w.reconcileApproved(ctx)
	w.dispatchDue(ctx, now)
}

func (w *Worker) reclaimLapsed(ctx context.Context, now time.Time) {
	reclaimed, err := w.store.ReclaimExpiredTriggers(ctx, now)
	if err != nil {
		w.logger.WithError(err).Error("Failed to reclaim expired trigger leases")
		return
	}
	if reclaimed > 0 {
		w.logger.WithField("count", reclaimed).Warn("Reclaimed triggers from lapsed leases")
		if w.reclaims != nil {
			w.reclaims.Add(float64(reclaimed))
		}
	}
}

func (w *Worker) reconcileApproved(ctx context.Context) {
	posts, err := w.store.ListApprovedWithoutTrigger(ctx)
	if err != nil {
		w.logger.WithError(err).Error("Failed to list approved posts without triggers")
		return
	}

	for _, post := range posts {
		if err := w.store.RegisterTrigger(ctx, post.ID, post.ScheduledAt); err != nil {
			w.logger.WithError(err).WithField("post_id", post.ID).Error("Failed to re-register trigger")
			continue
		}
		w.logger.WithFields(logging.Fields{
			"post_id": post.ID,
			"fire_at": post.ScheduledAt,
		}).Info("Re-registered missing trigger for approved post")
	}
}

func (w *Worker) dispatchDue(ctx context.Context, now time.Time) {
	claimed, err := w.store.ClaimDueTriggers(ctx, now, w.lease)
	if err != nil {
		w.logger.WithError(err).Error("Failed to claim due triggers")
		return
	}
	if len(claimed) == 0 {
		return
	}

	w.logger.WithField("count", len(claimed)).Info("Claimed due triggers")

	for _, trigger := range claimed {
		if ctx.Err() != nil {
			return
		}
		if err := w.dispatcher.Dispatch(ctx, trigger); err != nil {
			// The trigger stays leased and comes back via reclaim.
			w.logger.WithError(err).WithField("post_id", trigger.PostID).Error("Dispatch failed, trigger will be retried")
		}
	}
}
