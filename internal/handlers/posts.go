package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AbdulWasay1738/postsync-connect-flow/internal/approval"
	"github.com/AbdulWasay1738/postsync-connect-flow/internal/store"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/auth"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/logging"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/middleware"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

// CreatePost submits a new post. Admin submissions are live immediately,
// everyone else's wait in pending for the approval gate.
func CreatePost(c middleware.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Authentication required"})
		return
	}

	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	post, err := posts.CreatePost(c.Request.Context(), store.CreatePostParams{
		Caption:     req.Caption,
		MediaURL:    req.MediaURL,
		Platforms:   req.Platforms,
		ScheduledAt: req.ScheduledAt,
		Creator:     actor,
	})
	if err != nil {
		respondPostError(c, err)
		return
	}

	message := "Post submitted for approval"
	if post.Status == models.PostStatusApproved {
		message = "Post scheduled"
		// Admin submissions skip the gate, so the trigger is registered
		// here. A lost write is healed by the reconciliation sweep.
		if err := posts.RegisterTrigger(c.Request.Context(), post.ID, post.ScheduledAt); err != nil {
			logger.WithError(err).WithField("post_id", post.ID).Warn("Trigger registration failed, reconciliation sweep will retry")
		}
	}

	countEvent("created")
	middleware.GetContextLogger(c, logger).WithFields(logging.Fields{
		"post_id": post.ID,
		"status":  post.Status,
	}).Info("Post created")

	c.JSON(http.StatusCreated, models.PostResponse{Message: message, Post: post})
}

// ListPosts returns the scheduling calendar. The optional status query
// filters by comma-separated statuses; the default view is approved+pending.
func ListPosts(c middleware.Context) {
	var statuses []models.PostStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.PostStatus(strings.TrimSpace(s))
			if !status.Valid() {
				c.JSON(http.StatusBadRequest, middleware.H{"error": "unknown status: " + string(status)})
				return
			}
			statuses = append(statuses, status)
		}
	}

	list, err := posts.ListCalendarPosts(c.Request.Context(), statuses)
	if err != nil {
		logger.WithError(err).Error("Failed to list posts")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	if list == nil {
		list = []models.Post{}
	}

	c.JSON(http.StatusOK, middleware.H{"posts": list, "count": len(list)})
}

// GetPost returns one post by id
func GetPost(c middleware.Context) {
	post, err := posts.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondPostError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PostResponse{Post: post})
}

// ApprovePost moves a pending post to approved (admin only)
func ApprovePost(c middleware.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Authentication required"})
		return
	}

	post, err := gate.Approve(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondPostError(c, err)
		return
	}
	countEvent("approved")
	c.JSON(http.StatusOK, models.PostResponse{Message: "Post approved", Post: post})
}

// RejectPost moves a pending post to rejected (admin only)
func RejectPost(c middleware.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Authentication required"})
		return
	}

	post, err := gate.Reject(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondPostError(c, err)
		return
	}
	countEvent("rejected")
	c.JSON(http.StatusOK, models.PostResponse{Message: "Post rejected", Post: post})
}

// respondPostError maps store and gate errors onto HTTP statuses
func respondPostError(c middleware.Context, err error) {
	var valErr *store.ValidationError
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, middleware.H{"error": valErr.Reason})
	case errors.Is(err, approval.ErrForbidden):
		c.JSON(http.StatusForbidden, middleware.H{"error": "Admin privileges required"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, middleware.H{"error": "Post not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, middleware.H{"error": "Post already processed"})
	default:
		logger.WithError(err).Error("Post operation failed")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
	}
}
