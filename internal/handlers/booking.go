package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"travelhub/api/internal/booking"
	"travelhub/api/internal/models"
	"travelhub/api/internal/repository"
)

func (h *HandlerSet) ListPackages(c *gin.Context) {
	items, err := h.wizard.Packages(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list packages failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if items == nil {
		items = []models.Package{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type draftResponse struct {
	booking.Draft
	Complete bool `json:"complete"`
}

func respondDraft(c *gin.Context, status int, d booking.Draft) {
	c.JSON(status, gin.H{"draft": draftResponse{Draft: d, Complete: d.Complete() == nil}})
}

// draftFailed maps wizard errors to responses.
func (h *HandlerSet) draftFailed(c *gin.Context, err error) {
	var invalid *booking.ValidationError
	switch {
	case errors.Is(err, booking.ErrDraftNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "draft_not_found"})
	case errors.Is(err, repository.ErrPackageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "package_not_found"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"step":    invalid.Step,
			"missing": invalid.Missing,
		})
	case errors.Is(err, booking.ErrSubmitting):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case booking.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("draft_id", c.Param("draftId")).Msg("booking draft failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func (h *HandlerSet) StartDraft(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	respondDraft(c, http.StatusCreated, h.wizard.Start(user.ID))
}

func (h *HandlerSet) GetDraft(c *gin.Context) {
	h.draftStep(c, func(id, owner string) (booking.Draft, error) {
		return h.wizard.Get(id, owner)
	})
}

func (h *HandlerSet) DiscardDraft(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !h.wizard.Discard(c.Param("draftId"), user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type selectPackageRequest struct {
	PackageID string `json:"packageId" binding:"required"`
}

func (h *HandlerSet) SelectPackage(c *gin.Context) {
	var req selectPackageRequest
	if !bindJSON(c, &req) {
		return
	}
	h.draftStep(c, func(id, owner string) (booking.Draft, error) {
		return h.wizard.SelectPackage(c.Request.Context(), id, owner, req.PackageID)
	})
}

type scheduleRequest struct {
	DepartureDate string `json:"departureDate" binding:"required"`
	Adults        int    `json:"adults"`
	Children      int    `json:"children"`
}

func (h *HandlerSet) SetSchedule(c *gin.Context) {
	var req scheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	departure, err := time.Parse(time.DateOnly, req.DepartureDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "departureDate must be YYYY-MM-DD"})
		return
	}
	h.draftStep(c, func(id, owner string) (booking.Draft, error) {
		return h.wizard.SetSchedule(id, owner, departure, req.Adults, req.Children)
	})
}

type travelersRequest struct {
	Lead       models.Traveler   `json:"leadTraveler"`
	Companions []models.Traveler `json:"travelers"`
}

func (h *HandlerSet) SetTravelers(c *gin.Context) {
	var req travelersRequest
	if !bindJSON(c, &req) {
		return
	}
	h.draftStep(c, func(id, owner string) (booking.Draft, error) {
		return h.wizard.SetTravelers(id, owner, req.Lead, req.Companions)
	})
}

type addOnsRequest struct {
	Codes []string `json:"addOns"`
}

func (h *HandlerSet) SetAddOns(c *gin.Context) {
	var req addOnsRequest
	if !bindJSON(c, &req) {
		return
	}
	h.draftStep(c, func(id, owner string) (booking.Draft, error) {
		return h.wizard.SetAddOns(id, owner, req.Codes)
	})
}

func (h *HandlerSet) NextStep(c *gin.Context) {
	h.draftStep(c, h.wizard.Next)
}

func (h *HandlerSet) PreviousStep(c *gin.Context) {
	h.draftStep(c, h.wizard.Back)
}

func (h *HandlerSet) SubmitDraft(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	created, err := h.wizard.Submit(c.Request.Context(), c.Param("draftId"), user.ID)
	if err != nil {
		h.draftFailed(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": toBookingResponse(created)})
}

func (h *HandlerSet) MyBookings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	items, err := h.bookings.ListByUser(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("list own bookings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": bookingList(items)})
}

func (h *HandlerSet) draftStep(c *gin.Context, step func(id, owner string) (booking.Draft, error)) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	draft, err := step(c.Param("draftId"), user.ID)
	if err != nil {
		h.draftFailed(c, err)
		return
	}
	respondDraft(c, http.StatusOK, draft)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
