package handlers

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AbdulWasay1738/postsync-connect-flow/internal/store"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/clients/ayrshare"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/logging"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

// PostStore is the slice of the store the HTTP surface needs
type PostStore interface {
	CreatePost(ctx context.Context, params store.CreatePostParams) (*models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListCalendarPosts(ctx context.Context, statuses []models.PostStatus) ([]models.Post, error)
	RegisterTrigger(ctx context.Context, postID string, fireAt time.Time) error
}

// ApprovalGate mediates the pending -> approved/rejected transitions
type ApprovalGate interface {
	Approve(ctx context.Context, postID string, actor models.Actor) (*models.Post, error)
	Reject(ctx context.Context, postID string, actor models.Actor) (*models.Post, error)
}

// Uploader stores a media file and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// Publisher sends a post to the external publishing provider
type Publisher interface {
	Publish(ctx context.Context, pub ayrshare.PublishRequest) (*ayrshare.PublishResponse, error)
}

var (
	posts      PostStore
	gate       ApprovalGate
	uploader   Uploader
	publisher  Publisher
	logger     logging.Logger
	postEvents *prometheus.CounterVec
)

// Init initializes the handlers with their dependencies
func Init(p PostStore, g ApprovalGate, u Uploader, pub Publisher, log logging.Logger) {
	posts = p
	gate = g
	uploader = u
	publisher = pub
	logger = log
}

// InitMetrics wires the post lifecycle counter (labelled by event). Optional;
// handlers work without it, which keeps tests free of a metrics registry.
func InitMetrics(events *prometheus.CounterVec) {
	postEvents = events
}

func countEvent(event string) {
	if postEvents != nil {
		postEvents.WithLabelValues(event).Inc()
	}
}
