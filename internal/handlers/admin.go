package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"travelhub/api/internal/identity"
	"travelhub/api/internal/ids"
	"travelhub/api/internal/models"
	"travelhub/api/internal/payment"
	"travelhub/api/internal/repository"
	"travelhub/api/internal/roles"
)

func (h *HandlerSet) AdminListUsers(c *gin.Context) {
	limit, offset := pagination(c)

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, h.userResponse(c, user))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type createUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
	Phone       string `json:"phone"`
	Role        string `json:"role" binding:"required"`
	Tier        string `json:"tier"`
}

// grantable reports whether actor may hand out role. Only super admins
// create other super admins.
func grantable(actor models.User, role roles.Role) bool {
	return role != roles.SuperAdmin || actor.Role == roles.SuperAdmin
}

func (h *HandlerSet) AdminCreateUser(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, err := roles.Parse(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
		return
	}
	if !grantable(actor, role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	ctx := c.Request.Context()
	created, err := h.identity.CreateIdentity(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		return
	case errors.Is(err, identity.ErrWeakCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.Error().Err(err).Msg("create identity failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:          ids.New(),
		Email:       created.Email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Phone:       strings.TrimSpace(req.Phone),
		Role:        role,
		Status:      models.UserStatusActive,
		Tier:        req.Tier,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.users.Create(ctx, user); err != nil {
		h.log.Error().Err(err).Str("email", user.Email).Msg("create profile failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	h.log.Info().Str("actor_id", actor.ID).Str("user_id", user.ID).Str("role", role.String()).Msg("user created")
	c.JSON(http.StatusCreated, gin.H{"user": h.userResponse(c, user)})
}

type updateUserRequest struct {
	DisplayName *string `json:"displayName"`
	Phone       *string `json:"phone"`
	Role        *string `json:"role"`
	Tier        *string `json:"tier"`
	Bio         *string `json:"bio"`
}

func (h *HandlerSet) AdminUpdateUser(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	if user.Role == roles.SuperAdmin && actor.Role != roles.SuperAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	if req.Role != nil {
		role, err := roles.Parse(*req.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
			return
		}
		if !grantable(actor, role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		user.Role = role
	}
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Tier != nil {
		user.Tier = *req.Tier
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}

	if err := h.users.Update(ctx, user); err != nil {
		h.userWriteFailed(c, user.ID, err)
		return
	}
	h.identity.NotifyUserUpdated(ctx, user.Email)

	c.JSON(http.StatusOK, gin.H{"user": h.userResponse(c, user)})
}

type userStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *HandlerSet) AdminSetUserStatus(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req userStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := models.UserStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}

	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	if user.ID == actor.ID && status != models.UserStatusActive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot_deactivate_self"})
		return
	}
	if user.Role == roles.SuperAdmin && actor.Role != roles.SuperAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	ctx := c.Request.Context()
	if err := h.users.UpdateStatus(ctx, user.ID, status); err != nil {
		h.userWriteFailed(c, user.ID, err)
		return
	}
	// live sessions of a deactivated user sign themselves out on this event
	h.identity.NotifyUserUpdated(ctx, user.Email)

	h.log.Info().Str("actor_id", actor.ID).Str("user_id", user.ID).Str("status", string(status)).Msg("user status changed")
	user.Status = status
	c.JSON(http.StatusOK, gin.H{"user": h.userResponse(c, user)})
}

func (h *HandlerSet) loadUser(c *gin.Context) (models.User, bool) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("userId"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return models.User{}, false
		}
		h.log.Error().Err(err).Msg("load user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return models.User{}, false
	}
	return user, true
}

func (h *HandlerSet) userWriteFailed(c *gin.Context, userID string, err error) {
	if errors.Is(err, repository.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	h.log.Error().Err(err).Str("user_id", userID).Msg("update user failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

type bookingResponse struct {
	ID            string            `json:"id"`
	Number        string            `json:"bookingNumber"`
	UserID        string            `json:"userId"`
	PackageID     string            `json:"packageId"`
	DepartureDate string            `json:"departureDate"`
	Adults        int               `json:"adults"`
	Children      int               `json:"children"`
	LeadTraveler  models.Traveler   `json:"leadTraveler"`
	Travelers     []models.Traveler `json:"travelers"`
	AddOns        []string          `json:"addOns"`
	TotalMinor    int64             `json:"totalMinor"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"paymentStatus"`
	PurchaseID    string            `json:"purchaseId,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func toBookingResponse(b models.Booking) bookingResponse {
	resp := bookingResponse{
		ID:            b.ID,
		Number:        b.Number,
		UserID:        b.UserID,
		PackageID:     b.PackageID,
		DepartureDate: b.DepartureDate.Format(time.DateOnly),
		Adults:        b.Adults,
		Children:      b.Children,
		LeadTraveler:  b.LeadTraveler,
		Travelers:     b.Travelers,
		AddOns:        b.AddOns,
		TotalMinor:    b.TotalMinor,
		Amount:        payment.FromMinorUnits(b.TotalMinor),
		Currency:      b.Currency,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		CreatedAt:     b.CreatedAt,
	}
	if b.PurchaseID != nil {
		resp.PurchaseID = *b.PurchaseID
	}
	return resp
}

func bookingList(items []models.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toBookingResponse(b))
	}
	return out
}

func (h *HandlerSet) AdminListBookings(c *gin.Context) {
	limit, offset := pagination(c)

	items, err := h.bookings.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("list bookings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": bookingList(items)})
}
