package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func postRows(id, status string, scheduledAt time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "caption", "media_url", "platforms", "scheduled_at",
		"status", "created_by", "approved_by", "created_at", "updated_at",
	}).AddRow(id, "Launch day!", nil, "{instagram}", scheduledAt, status, "user-1", nil, now, now)
}

func validParams(creator models.Actor) CreatePostParams {
	return CreatePostParams{
		Caption:     "Launch day!",
		Platforms:   []models.Platform{models.PlatformInstagram},
		ScheduledAt: time.Now().Add(time.Hour),
		Creator:     creator,
	}
}

func TestCreatePost_ValidationFailures(t *testing.T) {
	s, mock := newMockStore(t)
	creator := models.Actor{ID: "user-1", Role: models.RoleEditor}

	cases := []struct {
		name   string
		mutate func(*CreatePostParams)
	}{
		{"empty caption", func(p *CreatePostParams) { p.Caption = "   " }},
		{"no platforms", func(p *CreatePostParams) { p.Platforms = nil }},
		{"unknown platform", func(p *CreatePostParams) { p.Platforms = []models.Platform{"myspace"} }},
		{"zero scheduled_at", func(p *CreatePostParams) { p.ScheduledAt = time.Time{} }},
		{"no creator", func(p *CreatePostParams) { p.Creator = models.Actor{} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validParams(creator)
			tc.mutate(&params)

			_, err := s.CreatePost(context.Background(), params)
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	// Nothing may touch the database on validation failure
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database access: %v", err)
	}
}

func TestCreatePost_AdminIsAutoApproved(t *testing.T) {
	s, mock := newMockStore(t)
	scheduledAt := time.Now().Add(time.Hour)

	mock.ExpectQuery("INSERT INTO postsync.posts").
		WithArgs("Launch day!", "", sqlmock.AnyArg(), sqlmock.AnyArg(), "approved", "admin-1").
		WillReturnRows(postRows("post-1", "approved", scheduledAt))

	params := validParams(models.Actor{ID: "admin-1", Role: models.RoleAdmin})
	params.ScheduledAt = scheduledAt

	post, err := s.CreatePost(context.Background(), params)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.Status != models.PostStatusApproved {
		t.Fatalf("expected approved status, got %s", post.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePost_EditorStartsPending(t *testing.T) {
	s, mock := newMockStore(t)
	scheduledAt := time.Now().Add(30 * time.Minute)

	mock.ExpectQuery("INSERT INTO postsync.posts").
		WithArgs("Launch day!", "", sqlmock.AnyArg(), sqlmock.AnyArg(), "pending", "editor-1").
		WillReturnRows(postRows("post-2", "pending", scheduledAt))

	params := validParams(models.Actor{ID: "editor-1", Role: models.RoleEditor})
	params.ScheduledAt = scheduledAt

	post, err := s.CreatePost(context.Background(), params)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.Status != models.PostStatusPending {
		t.Fatalf("expected pending status, got %s", post.Status)
	}
}

func TestCreatePost_PastScheduleAccepted(t *testing.T) {
	s, mock := newMockStore(t)
	past := time.Now().Add(-time.Hour)

	mock.ExpectQuery("INSERT INTO postsync.posts").
		WillReturnRows(postRows("post-3", "pending", past))

	params := validParams(models.Actor{ID: "editor-1", Role: models.RoleEditor})
	params.ScheduledAt = past

	if _, err := s.CreatePost(context.Background(), params); err != nil {
		t.Fatalf("past scheduled_at must be accepted, got %v", err)
	}
}

func TestGetPost_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM postsync.posts WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetPost(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionPost_Success(t *testing.T) {
	s, mock := newMockStore(t)
	scheduledAt := time.Now().Add(time.Hour)

	rows := postRows("post-1", "approved", scheduledAt)
	mock.ExpectQuery("UPDATE postsync.posts").
		WithArgs("post-1", "pending", "approved", "admin-1").
		WillReturnRows(rows)

	post, err := s.TransitionPost(context.Background(), "post-1", models.PostStatusPending, models.PostStatusApproved, "admin-1")
	if err != nil {
		t.Fatalf("TransitionPost: %v", err)
	}
	if post.Status != models.PostStatusApproved {
		t.Fatalf("expected approved, got %s", post.Status)
	}
}

func TestTransitionPost_ConflictWhenAlreadyProcessed(t *testing.T) {
	s, mock := newMockStore(t)

	// Conditional update misses because the post already moved on
	mock.ExpectQuery("UPDATE postsync.posts").
		WithArgs("post-1", "pending", "approved", "admin-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// Existence probe finds the post in its new state
	mock.ExpectQuery("SELECT (.+) FROM postsync.posts WHERE id").
		WithArgs("post-1").
		WillReturnRows(postRows("post-1", "approved", time.Now()))

	_, err := s.TransitionPost(context.Background(), "post-1", models.PostStatusPending, models.PostStatusApproved, "admin-2")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTransitionPost_TerminalStatusesAreFinal(t *testing.T) {
	s, mock := newMockStore(t)

	for _, from := range []models.PostStatus{models.PostStatusRejected, models.PostStatusPosted, models.PostStatusFailed} {
		t.Run(string(from), func(t *testing.T) {
			_, err := s.TransitionPost(context.Background(), "post-1", from, models.PostStatusApproved, "admin-1")
			if !errors.Is(err, ErrConflict) {
				t.Fatalf("transition away from %s must conflict, got %v", from, err)
			}
		})
	}

	// Terminal posts are never touched, not even to probe their state
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database access: %v", err)
	}
}

func TestTransitionPost_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE postsync.posts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT (.+) FROM postsync.posts WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.TransitionPost(context.Background(), "ghost", models.PostStatusApproved, models.PostStatusPosted, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListCalendarPosts_DefaultStatuses(t *testing.T) {
	s, mock := newMockStore(t)

	rows := postRows("post-1", "approved", time.Now()).
		AddRow("post-2", "New feature", nil, "{facebook,twitter}", time.Now(), "pending", "editor-1", nil, time.Now(), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM postsync.posts").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	posts, err := s.ListCalendarPosts(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListCalendarPosts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if len(posts[1].Platforms) != 2 {
		t.Fatalf("expected 2 platforms on second post, got %v", posts[1].Platforms)
	}
}

func TestListApprovedWithoutTrigger(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("LEFT JOIN postsync.post_triggers").
		WillReturnRows(postRows("post-9", "approved", time.Now()))

	posts, err := s.ListApprovedWithoutTrigger(context.Background())
	if err != nil {
		t.Fatalf("ListApprovedWithoutTrigger: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "post-9" {
		t.Fatalf("expected post-9, got %+v", posts)
	}
}
