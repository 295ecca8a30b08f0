package middleware

import (
	"github.com/gin-gonic/gin"

	"travelhub/api/internal/roles"
)

// RequireRoles admits authenticated users holding one of allowed. It answers
// with the same statuses as Guard.
func RequireRoles(observe DecisionObserver, allowed ...roles.Role) gin.HandlerFunc {
	return Guard(allowed, observe)
}
