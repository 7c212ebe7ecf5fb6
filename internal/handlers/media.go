package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/clients/ayrshare"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/logging"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/middleware"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

// maxUploadBytes bounds a single media upload
const maxUploadBytes = 10 << 20

// UploadMedia stores a media file and returns its public URL for use as a
// post's media_url
func UploadMedia(c middleware.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "file field is required"})
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, middleware.H{"error": "file exceeds 10MB limit"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "could not read file"})
		return
	}

	url, err := uploader.Upload(c.Request.Context(), header.Filename, data)
	if err != nil {
		logger.WithError(err).WithField("filename", header.Filename).Error("Media upload failed")
		c.JSON(http.StatusBadGateway, middleware.H{"error": "Media upload failed"})
		return
	}

	logger.WithFields(logging.Fields{
		"filename": header.Filename,
		"size":     header.Size,
	}).Info("Media uploaded")

	c.JSON(http.StatusOK, middleware.H{"url": url})
}

// PublishNow bypasses scheduling and sends a post straight to the provider
// (admin only). Nothing is persisted; callers own the outcome.
func PublishNow(c middleware.Context) {
	var req models.PublishProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}
	for _, platform := range req.Platforms {
		if !models.ValidPlatform(platform) {
			c.JSON(http.StatusBadRequest, middleware.H{"error": "unknown platform: " + string(platform)})
			return
		}
	}

	resp, err := publisher.Publish(c.Request.Context(), ayrshare.PublishRequest{
		Post:      req.Post,
		Platforms: models.PlatformStrings(req.Platforms),
		MediaURLs: req.MediaURLs,
	})
	if err != nil {
		var pubErr *ayrshare.PublishError
		if errors.As(err, &pubErr) && !pubErr.Unreachable() {
			logger.WithError(err).Error("Provider rejected direct publish")
			c.JSON(http.StatusBadGateway, middleware.H{"error": "Provider rejected post", "provider_status": pubErr.StatusCode})
			return
		}
		logger.WithError(err).Error("Provider unreachable for direct publish")
		c.JSON(http.StatusBadGateway, middleware.H{"error": "Provider unreachable"})
		return
	}

	c.JSON(http.StatusOK, middleware.H{"status": resp.Status, "id": resp.ID})
}
