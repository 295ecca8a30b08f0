package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"travelhub/api/internal/avatar"
)

func (h *HandlerSet) UploadAvatar(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	result, err := h.avatars.Upload(ctx, avatar.UploadInput{
		UserID:       user.ID,
		File:         file,
		DeclaredType: avatar.DeclaredType(http.Header(header.Header)),
	})
	if err != nil {
		switch {
		case errors.Is(err, avatar.ErrTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		case errors.Is(err, avatar.ErrEmpty), errors.Is(err, avatar.ErrUnsupportedFormat),
			errors.Is(err, avatar.ErrTypeMismatch), errors.Is(err, avatar.ErrNotSVG):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.Error().Err(err).Str("user_id", user.ID).Msg("avatar upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		}
		return
	}
	h.identity.NotifyUserUpdated(ctx, user.Email)

	c.JSON(http.StatusOK, gin.H{"avatar": gin.H{
		"key":    result.Key,
		"url":    result.URL,
		"format": result.Format,
		"size":   result.Size,
	}})
}
