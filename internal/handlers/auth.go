package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"travelhub/api/internal/identity"
	"travelhub/api/internal/middleware"
	"travelhub/api/internal/models"
	"travelhub/api/internal/roles"
	"travelhub/api/internal/session"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone,omitempty"`
	Role        string `json:"role"`
	RoleName    string `json:"roleName"`
	Status      string `json:"status"`
	Tier        string `json:"tier,omitempty"`
	Bio         string `json:"bio,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type sessionView struct {
	AccessToken string           `json:"accessToken,omitempty"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	User        userResponse     `json:"user"`
	Landing     string           `json:"landing"`
	Menu        []roles.MenuItem `json:"menu"`
}

func (h *HandlerSet) userResponse(c *gin.Context, user models.User) userResponse {
	resp := userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Phone:       user.Phone,
		Role:        user.Role.String(),
		RoleName:    roles.DisplayName(user.Role),
		Status:      string(user.Status),
		Tier:        user.Tier,
		Bio:         user.Bio,
	}
	if user.AvatarKey != nil && h.avatars != nil {
		url, err := h.avatars.URL(c.Request.Context(), *user.AvatarKey)
		if err != nil {
			h.log.Warn().Err(err).Str("user_id", user.ID).Msg("presign avatar failed")
		}
		resp.AvatarURL = url
	}
	return resp
}

func (h *HandlerSet) sessionView(c *gin.Context, sess identity.Session, user models.User) sessionView {
	return sessionView{
		ExpiresAt: sess.ExpiresAt,
		User:      h.userResponse(c, user),
		Landing:   roles.LandingPath(user.Role),
		Menu:      roles.MenuFor(user.Role),
	}
}

var loginStatus = map[session.FailureReason]int{
	session.ReasonInvalidCredentials: http.StatusUnauthorized,
	session.ReasonProfileNotFound:    http.StatusForbidden,
	session.ReasonInactive:           http.StatusForbidden,
	session.ReasonUnexpected:         http.StatusInternalServerError,
}

func (h *HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	store := h.registry.NewStore()
	result := store.Login(ctx, req.Email, req.Password)
	if !result.Success {
		store.Close()
		h.metrics.Login(string(result.Reason))
		status, ok := loginStatus[result.Reason]
		if !ok {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": result.Message, "reason": result.Reason})
		return
	}

	sess, ok := store.Session()
	if !ok || !h.registry.Adopt(store) {
		// signed out by an event between Login and Adopt
		h.metrics.Login(string(session.ReasonUnexpected))
		c.JSON(http.StatusInternalServerError, gin.H{"error": session.MessageUnexpected})
		return
	}
	h.metrics.Login("success")

	if err := h.identity.TouchSession(ctx, sess.ID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		h.log.Warn().Err(err).Str("session_id", sess.ID).Msg("record session client failed")
	}
	if err := middleware.RememberToken(c, sess.AccessToken); err != nil {
		h.log.Warn().Err(err).Msg("save session cookie failed")
	}

	view := h.sessionView(c, sess, *result.User)
	view.AccessToken = sess.AccessToken
	c.JSON(http.StatusOK, view)
}

func (h *HandlerSet) Logout(c *gin.Context) {
	token := middleware.CurrentToken(c)
	if token != "" {
		if user, ok := middleware.CurrentUser(c); ok {
			h.wizard.DiscardOwner(user.ID)
		}
		h.registry.Release(c.Request.Context(), token)
	}
	if err := middleware.ForgetToken(c); err != nil {
		h.log.Warn().Err(err).Msg("clear session cookie failed")
	}
	c.Status(http.StatusNoContent)
}

func (h *HandlerSet) CurrentSession(c *gin.Context) {
	store, _ := middleware.CurrentStore(c)
	user, ok := store.User()
	sess, hasSession := store.Session()
	if !ok || !hasSession {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, h.sessionView(c, sess, user))
}

type sessionResponse struct {
	ID         string    `json:"id"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

func (h *HandlerSet) ListSessions(c *gin.Context) {
	store, _ := middleware.CurrentStore(c)
	current, ok := store.Session()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, err := h.identity.ListSessions(c.Request.Context(), current.IdentityID)
	if err != nil {
		h.log.Error().Err(err).Msg("list sessions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	resp := make([]sessionResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, sessionResponse{
			ID:         row.ID,
			IPAddress:  row.IPAddress,
			UserAgent:  row.UserAgent,
			CreatedAt:  row.CreatedAt,
			LastSeenAt: row.LastSeenAt,
			ExpiresAt:  row.ExpiresAt,
			Current:    row.ID == current.ID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h *HandlerSet) RevokeSession(c *gin.Context) {
	store, _ := middleware.CurrentStore(c)
	current, ok := store.Session()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("sessionId")
	if sessionID == current.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot_revoke_current_session"})
		return
	}

	if err := h.identity.RevokeSession(c.Request.Context(), current.IdentityID, sessionID); err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("revoke session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.Status(http.StatusNoContent)
}
