package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"travelhub/api/internal/roles"
)

func dashboardPath(c *gin.Context) string {
	return strings.TrimSuffix("/dashboard"+c.Param("page"), "/")
}

func dashboardRoles(c *gin.Context) []roles.Role {
	return roles.RolesForPath(dashboardPath(c))
}

// knownDashboardPath answers 404 for views no role's menu reaches, before
// the guard would treat an empty role list as open to everyone.
func (h *HandlerSet) knownDashboardPath(c *gin.Context) {
	if len(dashboardRoles(c)) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.Next()
}

type dashboardResponse struct {
	View    string           `json:"view"`
	Title   string           `json:"title"`
	User    userResponse     `json:"user"`
	Landing string           `json:"landing"`
	Menu    []roles.MenuItem `json:"menu"`
}

// DashboardView renders the payload of a guarded dashboard view.
func (h *HandlerSet) DashboardView(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	path := dashboardPath(c)
	menu := roles.MenuFor(user.Role)
	title := roles.DisplayName(user.Role)
	for _, item := range menu {
		if item.Path == path || (item.Path != "/dashboard" && strings.HasPrefix(path, item.Path+"/")) {
			title = item.Label
			break
		}
	}

	c.JSON(http.StatusOK, dashboardResponse{
		View:    path,
		Title:   title,
		User:    h.userResponse(c, user),
		Landing: roles.LandingPath(user.Role),
		Menu:    menu,
	})
}
