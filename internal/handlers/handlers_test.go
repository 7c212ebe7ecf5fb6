package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AbdulWasay1738/postsync-connect-flow/internal/approval"
	"github.com/AbdulWasay1738/postsync-connect-flow/internal/store"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/clients/ayrshare"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/clients/cloudinary"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/logging"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

type fakePostStore struct {
	post      *models.Post
	list      []models.Post
	createErr error
	getErr    error
	listErr   error
	regErr    error

	created    []store.CreatePostParams
	registered []string
}

func (f *fakePostStore) CreatePost(_ context.Context, params store.CreatePostParams) (*models.Post, error) {
	f.created = append(f.created, params)
	if f.createErr != nil {
		return nil, f.createErr
	}
	post := *f.post
	post.Caption = params.Caption
	post.CreatedBy = params.Creator.ID
	if params.Creator.IsAdmin() {
		post.Status = models.PostStatusApproved
	} else {
		post.Status = models.PostStatusPending
	}
	return &post, nil
}

func (f *fakePostStore) GetPost(_ context.Context, id string) (*models.Post, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	post := *f.post
	post.ID = id
	return &post, nil
}

func (f *fakePostStore) ListCalendarPosts(_ context.Context, statuses []models.PostStatus) ([]models.Post, error) {
	return f.list, f.listErr
}

func (f *fakePostStore) RegisterTrigger(_ context.Context, postID string, _ time.Time) error {
	f.registered = append(f.registered, postID)
	return f.regErr
}

type fakeGate struct {
	post       *models.Post
	approveErr error
	rejectErr  error

	approved []string
	rejected []string
}

func (f *fakeGate) Approve(_ context.Context, postID string, _ models.Actor) (*models.Post, error) {
	f.approved = append(f.approved, postID)
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	post := *f.post
	post.ID = postID
	post.Status = models.PostStatusApproved
	return &post, nil
}

func (f *fakeGate) Reject(_ context.Context, postID string, _ models.Actor) (*models.Post, error) {
	f.rejected = append(f.rejected, postID)
	if f.rejectErr != nil {
		return nil, f.rejectErr
	}
	post := *f.post
	post.ID = postID
	post.Status = models.PostStatusRejected
	return &post, nil
}

type fakeUploader struct {
	url string
	err error
}

func (f *fakeUploader) Upload(_ context.Context, _ string, _ []byte) (string, error) {
	return f.url, f.err
}

type fakeProxyPublisher struct {
	resp *ayrshare.PublishResponse
	err  error

	calls []ayrshare.PublishRequest
}

func (f *fakeProxyPublisher) Publish(_ context.Context, pub ayrshare.PublishRequest) (*ayrshare.PublishResponse, error) {
	f.calls = append(f.calls, pub)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &ayrshare.PublishResponse{Status: "success", ID: "prov-1"}, nil
}

func basePost() *models.Post {
	return &models.Post{
		ID:          "post-1",
		Caption:     "Launch day!",
		Platforms:   []models.Platform{models.PlatformInstagram},
		ScheduledAt: time.Now().Add(time.Hour),
		Status:      models.PostStatusPending,
		CreatedBy:   "editor-1",
	}
}

type deps struct {
	store     *fakePostStore
	gate      *fakeGate
	uploader  *fakeUploader
	publisher *fakeProxyPublisher
}

// newTestRouter wires the routes with fakes and a middleware that injects
// the given actor, standing in for JWT auth.
func newTestRouter(d deps, actor *models.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)

	if d.store == nil {
		d.store = &fakePostStore{post: basePost()}
	}
	if d.gate == nil {
		d.gate = &fakeGate{post: basePost()}
	}
	if d.uploader == nil {
		d.uploader = &fakeUploader{url: "https://res.cloudinary.com/demo/img.png"}
	}
	if d.publisher == nil {
		d.publisher = &fakeProxyPublisher{}
	}
	Init(d.store, d.gate, d.uploader, d.publisher, logging.NewLogger())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if actor != nil {
			c.Set("actor", *actor)
		}
		c.Next()
	})

	api := router.Group("/api")
	api.POST("/posts", CreatePost)
	api.GET("/posts", ListPosts)
	api.GET("/posts/:id", GetPost)
	api.PATCH("/posts/:id/approve", ApprovePost)
	api.PATCH("/posts/:id/reject", RejectPost)
	api.POST("/upload", UploadMedia)
	api.POST("/publish", PublishNow)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var (
	adminActor  = models.Actor{ID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin}
	editorActor = models.Actor{ID: "editor-1", Email: "editor@example.com", Role: models.RoleEditor}
)

func TestCreatePost_EditorStartsPending(t *testing.T) {
	f := &fakePostStore{post: basePost()}
	router := newTestRouter(deps{store: f}, &editorActor)

	w := doJSON(t, router, "POST", "/api/posts", models.CreatePostRequest{
		Caption:     "Launch day!",
		Platforms:   []models.Platform{models.PlatformInstagram},
		ScheduledAt: time.Now().Add(time.Hour),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.PostResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Post.Status != models.PostStatusPending {
		t.Fatalf("expected pending, got %s", resp.Post.Status)
	}
	if len(f.registered) != 0 {
		t.Fatalf("pending post must not get a trigger, got %v", f.registered)
	}
}

func TestCreatePost_AdminGetsTrigger(t *testing.T) {
	f := &fakePostStore{post: basePost()}
	router := newTestRouter(deps{store: f}, &adminActor)

	w := doJSON(t, router, "POST", "/api/posts", models.CreatePostRequest{
		Caption:     "Launch day!",
		Platforms:   []models.Platform{models.PlatformInstagram},
		ScheduledAt: time.Now().Add(time.Hour),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.registered) != 1 {
		t.Fatalf("admin post must register a trigger, got %v", f.registered)
	}
}

func TestCreatePost_ValidationErrorIs400(t *testing.T) {
	f := &fakePostStore{post: basePost(), createErr: &store.ValidationError{Reason: "unknown platform: myspace"}}
	router := newTestRouter(deps{store: f}, &editorActor)

	w := doJSON(t, router, "POST", "/api/posts", models.CreatePostRequest{
		Caption:     "x",
		Platforms:   []models.Platform{"myspace"},
		ScheduledAt: time.Now().Add(time.Hour),
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreatePost_MissingFieldsIs400(t *testing.T) {
	router := newTestRouter(deps{}, &editorActor)

	w := doJSON(t, router, "POST", "/api/posts", map[string]interface{}{"caption": "no platforms"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreatePost_RequiresAuth(t *testing.T) {
	router := newTestRouter(deps{}, nil)

	w := doJSON(t, router, "POST", "/api/posts", models.CreatePostRequest{
		Caption:     "x",
		Platforms:   []models.Platform{models.PlatformInstagram},
		ScheduledAt: time.Now().Add(time.Hour),
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestListPosts_ReturnsCalendar(t *testing.T) {
	f := &fakePostStore{post: basePost(), list: []models.Post{*basePost(), *basePost()}}
	router := newTestRouter(deps{store: f}, &editorActor)

	w := doJSON(t, router, "GET", "/api/posts", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Posts []models.Post `json:"posts"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %+v", resp)
	}
}

func TestListPosts_UnknownStatusIs400(t *testing.T) {
	router := newTestRouter(deps{}, &editorActor)

	w := doJSON(t, router, "GET", "/api/posts?status=draft", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetPost_NotFoundIs404(t *testing.T) {
	f := &fakePostStore{post: basePost(), getErr: store.ErrNotFound}
	router := newTestRouter(deps{store: f}, &editorActor)

	w := doJSON(t, router, "GET", "/api/posts/missing", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestApprovePost_Success(t *testing.T) {
	g := &fakeGate{post: basePost()}
	router := newTestRouter(deps{gate: g}, &adminActor)

	w := doJSON(t, router, "PATCH", "/api/posts/post-1/approve", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(g.approved) != 1 || g.approved[0] != "post-1" {
		t.Fatalf("expected approve call for post-1, got %v", g.approved)
	}
}

func TestApprovePost_ConflictIs409(t *testing.T) {
	g := &fakeGate{post: basePost(), approveErr: store.ErrConflict}
	router := newTestRouter(deps{gate: g}, &adminActor)

	w := doJSON(t, router, "PATCH", "/api/posts/post-1/approve", nil)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestApprovePost_ForbiddenIs403(t *testing.T) {
	g := &fakeGate{post: basePost(), approveErr: approval.ErrForbidden}
	router := newTestRouter(deps{gate: g}, &editorActor)

	w := doJSON(t, router, "PATCH", "/api/posts/post-1/approve", nil)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRejectPost_Success(t *testing.T) {
	g := &fakeGate{post: basePost()}
	router := newTestRouter(deps{gate: g}, &adminActor)

	w := doJSON(t, router, "PATCH", "/api/posts/post-1/reject", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(g.rejected) != 1 {
		t.Fatalf("expected reject call, got %v", g.rejected)
	}
}

func TestUploadMedia_ReturnsURL(t *testing.T) {
	router := newTestRouter(deps{uploader: &fakeUploader{url: "https://res.cloudinary.com/demo/img.png"}}, &editorActor)

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "img.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = writer.Close()

	req := httptest.NewRequest("POST", "/api/upload", &form)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.URL != "https://res.cloudinary.com/demo/img.png" {
		t.Fatalf("unexpected url %q", resp.URL)
	}
}

func TestUploadMedia_FailureIs502(t *testing.T) {
	router := newTestRouter(deps{uploader: &fakeUploader{err: &cloudinary.UploadError{StatusCode: 500, Message: "boom"}}}, &editorActor)

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, _ := writer.CreateFormFile("file", "img.png")
	_, _ = part.Write([]byte("png-bytes"))
	_ = writer.Close()

	req := httptest.NewRequest("POST", "/api/upload", &form)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestUploadMedia_MissingFileIs400(t *testing.T) {
	router := newTestRouter(deps{}, &editorActor)

	w := doJSON(t, router, "POST", "/api/upload", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPublishNow_Success(t *testing.T) {
	p := &fakeProxyPublisher{}
	router := newTestRouter(deps{publisher: p}, &adminActor)

	w := doJSON(t, router, "POST", "/api/publish", models.PublishProxyRequest{
		Post:      "Right now",
		Platforms: []models.Platform{models.PlatformTwitter},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(p.calls) != 1 || p.calls[0].Post != "Right now" {
		t.Fatalf("unexpected publish calls: %+v", p.calls)
	}
}

func TestPublishNow_ProviderRejectionIs502(t *testing.T) {
	p := &fakeProxyPublisher{err: &ayrshare.PublishError{StatusCode: 400, Message: "bad"}}
	router := newTestRouter(deps{publisher: p}, &adminActor)

	w := doJSON(t, router, "POST", "/api/publish", models.PublishProxyRequest{
		Post:      "Right now",
		Platforms: []models.Platform{models.PlatformTwitter},
	})

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestPublishNow_UnknownPlatformIs400(t *testing.T) {
	p := &fakeProxyPublisher{}
	router := newTestRouter(deps{publisher: p}, &adminActor)

	w := doJSON(t, router, "POST", "/api/publish", models.PublishProxyRequest{
		Post:      "Right now",
		Platforms: []models.Platform{"myspace"},
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(p.calls) != 0 {
		t.Fatal("must not reach the provider with an unknown platform")
	}
}

func TestRespondPostError_Mapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &store.ValidationError{Reason: "caption is required"}, http.StatusBadRequest},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"conflict", store.ErrConflict, http.StatusConflict},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakePostStore{post: basePost(), getErr: tt.err}
			router := newTestRouter(deps{store: f}, &editorActor)

			w := doJSON(t, router, "GET", "/api/posts/post-1", nil)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
