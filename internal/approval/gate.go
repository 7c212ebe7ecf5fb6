package approval

import (
	"context"
	"errors"
	"time"

	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/logging"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

// ErrForbidden is returned when a non-admin actor tries to operate the gate
var ErrForbidden = errors.New("admin privileges required")

// PostStore is the slice of the store the gate needs
type PostStore interface {
	TransitionPost(ctx context.Context, id string, from, to models.PostStatus, approvedBy string) (*models.Post, error)
	RegisterTrigger(ctx context.Context, postID string, fireAt time.Time) error
}

// Gate mediates pending -> approved/rejected transitions. Only admins may
// call it; the store's conditional transition resolves concurrent approvals
// so exactly one of two racing admins wins.
type Gate struct {
	store  PostStore
	logger logging.Logger
}

// NewGate creates an approval gate
func NewGate(store PostStore, logger logging.Logger) *Gate {
	return &Gate{store: store, logger: logger}
}

// Approve moves a pending post to approved and registers its dispatch
// trigger. The two writes are not transactional: if the trigger write fails
// the post stays approved and the scheduler's reconciliation sweep
// re-registers the trigger on its next cycle.
func (g *Gate) Approve(ctx context.Context, postID string, actor models.Actor) (*models.Post, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	post, err := g.store.TransitionPost(ctx, postID, models.PostStatusPending, models.PostStatusApproved, actor.ID)
	if err != nil {
		return nil, err
	}

	if err := g.store.RegisterTrigger(ctx, post.ID, post.ScheduledAt); err != nil {
		g.logger.WithError(err).WithFields(logging.Fields{
			"post_id": post.ID,
			"fire_at": post.ScheduledAt,
		}).Warn("Trigger registration failed, reconciliation sweep will retry")
	}

	g.logger.WithFields(logging.Fields{
		"post_id":     post.ID,
		"approved_by": actor.ID,
		"fire_at":     post.ScheduledAt,
	}).Info("Post approved")

	return post, nil
}

// Reject moves a pending post to rejected. Rejected is terminal and no
// trigger is registered.
func (g *Gate) Reject(ctx context.Context, postID string, actor models.Actor) (*models.Post, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	post, err := g.store.TransitionPost(ctx, postID, models.PostStatusPending, models.PostStatusRejected, actor.ID)
	if err != nil {
		return nil, err
	}

	g.logger.WithFields(logging.Fields{
		"post_id":     post.ID,
		"rejected_by": actor.ID,
	}).Info("Post rejected")

	return post, nil
}
