package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"travelhub/api/internal/models"
	"travelhub/api/internal/session"
)

const (
	// SessionCookie carries the access token for browser navigations.
	SessionCookie = "travelhub_session"

	cookieTokenKey = "access_token"
	storeKey       = "session_store"
	userKey        = "current_user"
	tokenKey       = "access_token"
)

// AccessToken returns the bearer token, falling back to the cookie session.
func AccessToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if sess := cookieSession(c); sess != nil {
		if token, ok := sess.Get(cookieTokenKey).(string); ok {
			return token
		}
	}
	return ""
}

// RememberToken stores the access token in the cookie session.
func RememberToken(c *gin.Context, token string) error {
	sess := cookieSession(c)
	if sess == nil {
		return nil
	}
	sess.Set(cookieTokenKey, token)
	return sess.Save()
}

// ForgetToken clears the cookie session.
func ForgetToken(c *gin.Context) error {
	sess := cookieSession(c)
	if sess == nil {
		return nil
	}
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	return sess.Save()
}

func cookieSession(c *gin.Context) sessions.Session {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil
	}
	return sessions.Default(c)
}

// Session attaches the session store behind the request's access token, if
// any. It never aborts; Guard and RequireAuth decide what to do.
func Session(registry *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c)
		if token == "" {
			c.Next()
			return
		}

		store := registry.Resolve(c.Request.Context(), token)
		c.Set(storeKey, store)
		c.Set(tokenKey, token)
		if user, ok := store.User(); ok {
			c.Set(userKey, user)
		}

		c.Next()
	}
}

// RequireAuth rejects requests without an authenticated session.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := CurrentStore(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		if store.Loading() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session_loading"})
			return
		}
		if !store.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		c.Next()
	}
}

func CurrentStore(c *gin.Context) (*session.Store, bool) {
	v, ok := c.Get(storeKey)
	if !ok {
		return nil, false
	}
	store, ok := v.(*session.Store)
	return store, ok && store != nil
}

// CurrentUser returns the user as of the start of the request.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// CurrentToken returns the access token Session resolved for this request.
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
