package models

import (
	"time"
)

// PostStatus is the lifecycle state of a scheduled post
type PostStatus string

const (
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusRejected PostStatus = "rejected"
	PostStatusPosted   PostStatus = "posted"
	PostStatusFailed   PostStatus = "failed"
)

// Valid reports whether s is a known post status
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPending, PostStatusApproved, PostStatusRejected, PostStatusPosted, PostStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
// Rejected, posted and failed posts are never touched again by the core.
func (s PostStatus) Terminal() bool {
	switch s {
	case PostStatusRejected, PostStatusPosted, PostStatusFailed:
		return true
	}
	return false
}

// Platform is a publishing destination
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformYouTube   Platform = "youtube"
)

// KnownPlatforms is the closed set of supported publishing destinations
var KnownPlatforms = []Platform{
	PlatformInstagram,
	PlatformFacebook,
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformYouTube,
}

// PlatformStrings converts platforms to their wire form
func PlatformStrings(platforms []Platform) []string {
	out := make([]string, len(platforms))
	for i, p := range platforms {
		out[i] = string(p)
	}
	return out
}

// ValidPlatform reports whether p is a supported destination
func ValidPlatform(p Platform) bool {
	for _, known := range KnownPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// Post represents a scheduled social media post
type Post struct {
	ID          string     `json:"id"`
	Caption     string     `json:"caption"`
	MediaURL    string     `json:"media_url,omitempty"`
	Platforms   []Platform `json:"platforms"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Status      PostStatus `json:"status"`
	CreatedBy   string     `json:"created_by"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TriggerState is the lifecycle state of a scheduled trigger
type TriggerState string

const (
	TriggerStateScheduled TriggerState = "scheduled"
	TriggerStateFiring    TriggerState = "firing"
)

// Trigger is the durable record that a post is due for dispatch at fire_at.
// Rows are deleted when consumed, so only scheduled/firing appear in storage.
type Trigger struct {
	PostID         string       `json:"post_id"`
	FireAt         time.Time    `json:"fire_at"`
	State          TriggerState `json:"state"`
	LeaseExpiresAt *time.Time   `json:"lease_expires_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// CreatePostRequest is the payload for POST /api/posts
type CreatePostRequest struct {
	Caption     string     `json:"caption" binding:"required"`
	MediaURL    string     `json:"media_url"`
	Platforms   []Platform `json:"platforms" binding:"required"`
	ScheduledAt time.Time  `json:"scheduled_at" binding:"required"`
}

// PostResponse wraps a post with an operator-facing message
type PostResponse struct {
	Message string `json:"message,omitempty"`
	Post    *Post  `json:"post"`
}

// PublishProxyRequest is the payload for the direct publish proxy endpoint
type PublishProxyRequest struct {
	Post      string     `json:"post" binding:"required"`
	Platforms []Platform `json:"platforms" binding:"required"`
	MediaURLs []string   `json:"mediaUrls"`
}
