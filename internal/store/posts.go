package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

const postColumns = `id, caption, media_url, platforms, scheduled_at, status, created_by, approved_by, created_at, updated_at`

// CreatePostParams carries a new post submission
type CreatePostParams struct {
	Caption     string
	MediaURL    string
	Platforms   []models.Platform
	ScheduledAt time.Time
	Creator     models.Actor
}

func (p CreatePostParams) validate() error {
	if strings.TrimSpace(p.Caption) == "" {
		return &ValidationError{Reason: "caption is required"}
	}
	if len(p.Platforms) == 0 {
		return &ValidationError{Reason: "at least one platform is required"}
	}
	for _, platform := range p.Platforms {
		if !models.ValidPlatform(platform) {
			return &ValidationError{Reason: "unknown platform: " + string(platform)}
		}
	}
	if p.ScheduledAt.IsZero() {
		return &ValidationError{Reason: "scheduled_at is required"}
	}
	if p.Creator.ID == "" {
		return &ValidationError{Reason: "creator is required"}
	}
	return nil
}

// CreatePost validates and persists a new post. Admin submissions start out
// approved; everyone else waits in pending for the approval gate. A past
// scheduled_at is accepted and simply becomes due on the next poll cycle
// once the post is approved.
func (s *Store) CreatePost(ctx context.Context, params CreatePostParams) (*models.Post, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	status := models.PostStatusPending
	if params.Creator.IsAdmin() {
		status = models.PostStatusApproved
	}

	query := `
		INSERT INTO postsync.posts (caption, media_url, platforms, scheduled_at, status, created_by)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		RETURNING ` + postColumns

	row := s.db.QueryRowContext(ctx, query,
		params.Caption, params.MediaURL, pq.Array(models.PlatformStrings(params.Platforms)),
		params.ScheduledAt, string(status), params.Creator.ID,
	)
	return scanPost(row)
}

// GetPost retrieves a post by id
func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM postsync.posts WHERE id = $1`
	post, err := scanPost(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return post, err
}

// ListCalendarPosts returns posts in the given statuses ordered by scheduled
// time. Defaults to {approved, pending}, the calendar view projection.
func (s *Store) ListCalendarPosts(ctx context.Context, statuses []models.PostStatus) ([]models.Post, error) {
	if len(statuses) == 0 {
		statuses = []models.PostStatus{models.PostStatusApproved, models.PostStatusPending}
	}
	filter := make([]string, len(statuses))
	for i, status := range statuses {
		filter[i] = string(status)
	}

	query := `
		SELECT ` + postColumns + `
		FROM postsync.posts
		WHERE status = ANY($1)
		ORDER BY scheduled_at ASC`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(filter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPostRow(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

// TransitionPost atomically moves a post from one status to another. The
// conditional WHERE is the concurrency guard: when two writers race, exactly
// one sees a row in the expected status and the other gets ErrConflict.
// Rejected, posted and failed are terminal: no transition leaves them.
// approvedBy is recorded only when leaving pending and is never cleared.
func (s *Store) TransitionPost(ctx context.Context, id string, from, to models.PostStatus, approvedBy string) (*models.Post, error) {
	if !from.Valid() || !to.Valid() {
		return nil, &ValidationError{Reason: "unknown status"}
	}
	if from.Terminal() {
		return nil, ErrConflict
	}

	query := `
		UPDATE postsync.posts
		SET status = $3,
		    approved_by = COALESCE(approved_by, NULLIF($4, '')),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + postColumns

	post, err := scanPost(s.db.QueryRowContext(ctx, query, id, string(from), string(to), approvedBy))
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing post from one that moved on without us.
		if _, getErr := s.GetPost(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	return post, err
}

// ListApprovedWithoutTrigger finds approved posts that have no live trigger.
// The reconciliation sweep re-registers these so an approval whose trigger
// write was lost still gets dispatched (self-healing, see scheduler).
func (s *Store) ListApprovedWithoutTrigger(ctx context.Context) ([]models.Post, error) {
	query := `
		SELECT ` + postColumnsPrefixed("p") + `
		FROM postsync.posts p
		LEFT JOIN postsync.post_triggers t ON t.post_id = p.id
		WHERE p.status = 'approved' AND t.post_id IS NULL
		ORDER BY p.scheduled_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPostRow(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

func postColumnsPrefixed(alias string) string {
	cols := strings.Split(postColumns, ", ")
	for i, col := range cols {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	return scanPostRow(row)
}

func scanPostRow(row rowScanner) (*models.Post, error) {
	var post models.Post
	var mediaURL, approvedBy sql.NullString
	var platforms pq.StringArray

	err := row.Scan(
		&post.ID, &post.Caption, &mediaURL, &platforms, &post.ScheduledAt,
		&post.Status, &post.CreatedBy, &approvedBy, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	post.MediaURL = mediaURL.String
	post.ApprovedBy = approvedBy.String
	post.Platforms = make([]models.Platform, len(platforms))
	for i, p := range platforms {
		post.Platforms[i] = models.Platform(p)
	}
	return &post, nil
}
