package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"travelhub/api/internal/guard"
	"travelhub/api/internal/models"
	"travelhub/api/internal/roles"
)

var errBadStore = errors.New("session store has unexpected type")

type snapshotter interface {
	Snapshot() (loading bool, user *models.User)
}

// DecisionObserver receives every guard outcome.
type DecisionObserver func(outcome string)

// Guard protects a route for the given roles. An empty list admits any
// authenticated user.
func Guard(allowed []roles.Role, observe DecisionObserver) gin.HandlerFunc {
	return GuardFunc(func(*gin.Context) []roles.Role { return allowed }, observe)
}

// GuardFunc is Guard with the allowed roles derived from the request.
func GuardFunc(allowedFor func(*gin.Context) []roles.Role, observe DecisionObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		lookup := func() (guard.State, error) {
			v, ok := c.Get(storeKey)
			if !ok {
				return guard.State{}, nil
			}
			store, ok := v.(snapshotter)
			if !ok {
				return guard.State{}, errBadStore
			}
			loading, user := store.Snapshot()
			return guard.State{Loading: loading, User: user}, nil
		}

		decision := guard.Check(lookup, allowedFor(c), c.Request.URL.RequestURI())
		if observe != nil {
			observe(decision.Outcome.String())
		}
		writeDecision(c, decision)
	}
}

func writeDecision(c *gin.Context, d guard.Decision) {
	switch d.Outcome {
	case guard.Render:
		c.Next()
	case guard.Loading:
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session_loading"})
	case guard.RedirectLogin:
		if wantsHTML(c) {
			c.Redirect(http.StatusFound, d.RedirectTo)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":    "unauthenticated",
			"redirect": d.RedirectTo,
		})
	case guard.AccessDenied:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":    "forbidden",
			"redirect": d.RedirectTo,
		})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication_error"})
	}
}

func wantsHTML(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet {
		return false
	}
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
