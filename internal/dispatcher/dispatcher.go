package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AbdulWasay1738/postsync-connect-flow/internal/store"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/clients/ayrshare"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/logging"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

// Publisher sends one post to the external publishing provider
type Publisher interface {
	Publish(ctx context.Context, pub ayrshare.PublishRequest) (*ayrshare.PublishResponse, error)
}

// PostStore is the slice of the store the dispatcher needs
type PostStore interface {
	GetPost(ctx context.Context, id string) (*models.Post, error)
	TransitionPost(ctx context.Context, id string, from, to models.PostStatus, approvedBy string) (*models.Post, error)
	CompleteTrigger(ctx context.Context, postID string) error
}

// Dispatcher takes a claimed trigger to a terminal outcome: posted on
// provider success, failed otherwise. A failed post is never re-dispatched;
// resubmission means creating a new post.
type Dispatcher struct {
	store          PostStore
	publisher      Publisher
	logger         logging.Logger
	publishTimeout time.Duration
	outcomes       *prometheus.CounterVec
}

// Config holds dispatcher tunables
type Config struct {
	// PublishTimeout bounds a single provider call so one slow publish
	// cannot stall the whole dispatch cycle
	PublishTimeout time.Duration

	// Outcomes counts dispatch results by outcome label (optional)
	Outcomes *prometheus.CounterVec
}

// DefaultConfig returns dispatcher defaults
func DefaultConfig() Config {
	return Config{
		PublishTimeout: 30 * time.Second,
	}
}

// NewDispatcher creates a dispatcher
func NewDispatcher(postStore PostStore, publisher Publisher, logger logging.Logger, cfg Config) *Dispatcher {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	return &Dispatcher{
		store:          postStore,
		publisher:      publisher,
		logger:         logger,
		publishTimeout: cfg.PublishTimeout,
		outcomes:       cfg.Outcomes,
	}
}

// Dispatch resolves one claimed trigger. The trigger row is deleted once the
// outcome is known; on a transient store error it is left in its firing state
// so the lease reclaim path retries it later.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger models.Trigger) error {
	log := d.logger.WithField("post_id", trigger.PostID)

	post, err := d.store.GetPost(ctx, trigger.PostID)
	if errors.Is(err, store.ErrNotFound) {
		// Post deleted out from under its trigger. Nothing to publish.
		log.Warn("Trigger references a missing post, discarding")
		d.count("orphaned")
		return d.store.CompleteTrigger(ctx, trigger.PostID)
	}
	if err != nil {
		return err
	}

	// A trigger can outlive its post's approval, e.g. when a reclaimed
	// trigger fires again after the first attempt already recorded an
	// outcome. Only approved posts are published.
	if post.Status != models.PostStatusApproved {
		log.WithField("status", post.Status).Info("Skipping trigger for non-approved post")
		d.count("stale")
		return d.store.CompleteTrigger(ctx, trigger.PostID)
	}

	pubCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()

	var mediaURLs []string
	if post.MediaURL != "" {
		mediaURLs = []string{post.MediaURL}
	}

	resp, pubErr := d.publisher.Publish(pubCtx, ayrshare.PublishRequest{
		Post:           post.Caption,
		Platforms:      models.PlatformStrings(post.Platforms),
		MediaURLs:      mediaURLs,
		IdempotencyKey: post.ID,
	})

	if pubErr != nil {
		d.recordFailure(ctx, post, pubErr)
		d.count("failed")
	} else {
		log.WithFields(logging.Fields{
			"provider_id": resp.ID,
			"platforms":   post.Platforms,
		}).Info("Post published")
		d.recordOutcome(ctx, post, models.PostStatusPosted)
		d.count("posted")
	}

	return d.store.CompleteTrigger(ctx, trigger.PostID)
}

func (d *Dispatcher) recordFailure(ctx context.Context, post *models.Post, pubErr error) {
	log := d.logger.WithField("post_id", post.ID).WithError(pubErr)

	var provErr *ayrshare.PublishError
	if errors.As(pubErr, &provErr) && !provErr.Unreachable() {
		log.WithField("provider_status", provErr.StatusCode).Error("Provider rejected post")
	} else {
		log.Error("Provider unreachable")
	}

	d.recordOutcome(ctx, post, models.PostStatusFailed)
}

func (d *Dispatcher) recordOutcome(ctx context.Context, post *models.Post, outcome models.PostStatus) {
	if _, err := d.store.TransitionPost(ctx, post.ID, models.PostStatusApproved, outcome, ""); err != nil {
		// A concurrent writer already moved the post. The trigger is still
		// consumed so the outcome recorded first stands.
		d.logger.WithError(err).WithFields(logging.Fields{
			"post_id": post.ID,
			"outcome": outcome,
		}).Warn("Could not record dispatch outcome")
	}
}

func (d *Dispatcher) count(outcome string) {
	if d.outcomes != nil {
		d.outcomes.WithLabelValues(outcome).Inc()
	}
}
