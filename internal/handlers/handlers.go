package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"travelhub/api/internal/avatar"
	"travelhub/api/internal/booking"
	"travelhub/api/internal/config"
	"travelhub/api/internal/metrics"
	"travelhub/api/internal/middleware"
	"travelhub/api/internal/models"
	"travelhub/api/internal/payment"
	"travelhub/api/internal/queue"
	"travelhub/api/internal/roles"
	"travelhub/api/internal/session"
)

// IdentityAdmin is the part of the identity service the handlers manage
// credentials and sessions with.
type IdentityAdmin interface {
	CreateIdentity(ctx context.Context, email string, password string) (models.Identity, error)
	NotifyUserUpdated(ctx context.Context, email string)
	ListSessions(ctx context.Context, identityID string) ([]models.Session, error)
	RevokeSession(ctx context.Context, identityID string, sessionID string) error
	TouchSession(ctx context.Context, sessionID string, ip string, userAgent string) error
}

type UserDirectory interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Update(ctx context.Context, user models.User) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
}

type BookingReader interface {
	GetByNumber(ctx context.Context, number string) (models.Booking, error)
	GetByPurchaseID(ctx context.Context, purchaseID string) (models.Booking, error)
	List(ctx context.Context, limit, offset int) ([]models.Booking, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Booking, error)
}

type Checkout interface {
	StartCheckout(ctx context.Context, in payment.CheckoutInput) payment.CheckoutResult
}

type PurchaseReader interface {
	GetPurchase(ctx context.Context, id string) (payment.Purchase, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

type AvatarUploader interface {
	Upload(ctx context.Context, in avatar.UploadInput) (avatar.UploadResult, error)
	URL(ctx context.Context, key string) (string, error)
}

// Probe is one dependency checked by the health endpoint.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Config    *config.AppConfig
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
	Registry  *session.Registry
	Identity  IdentityAdmin
	Users     UserDirectory
	Bookings  BookingReader
	Wizard    *booking.Service
	Checkout  Checkout
	Purchases PurchaseReader
	Queue     Enqueuer
	Avatars   AvatarUploader
	Redis     redis.Cmdable
	Probes    []Probe
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	metrics   *metrics.Metrics
	registry  *session.Registry
	identity  IdentityAdmin
	users     UserDirectory
	bookings  BookingReader
	wizard    *booking.Service
	checkout  Checkout
	purchases PurchaseReader
	queue     Enqueuer
	avatars   AvatarUploader
	redis     redis.Cmdable
	probes    []Probe
}

func NewHandlerSet(deps Deps) *HandlerSet {
	return &HandlerSet{
		log:       deps.Log,
		cfg:       deps.Config,
		metrics:   deps.Metrics,
		registry:  deps.Registry,
		identity:  deps.Identity,
		users:     deps.Users,
		bookings:  deps.Bookings,
		wizard:    deps.Wizard,
		checkout:  deps.Checkout,
		purchases: deps.Purchases,
		queue:     deps.Queue,
		avatars:   deps.Avatars,
		redis:     deps.Redis,
		probes:    deps.Probes,
	}
}

var (
	adminRoles   = []roles.Role{roles.SuperAdmin, roles.Admin}
	bookingStaff = []roles.Role{roles.SuperAdmin, roles.Admin, roles.BookingReservation, roles.Finance}
	bookerRoles  = []roles.Role{roles.SuperAdmin, roles.Admin, roles.BookingReservation, roles.TravelAgent, roles.Customer}
)

func (h *HandlerSet) Register(engine *gin.Engine) {
	withSession := middleware.Session(h.registry)
	observe := middleware.DecisionObserver(h.metrics.GuardDecision)
	requireRoles := func(allowed ...roles.Role) gin.HandlerFunc {
		return middleware.RequireRoles(observe, allowed...)
	}

	engine.GET("/healthz", h.Health)

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/packages", h.ListPackages)

		auth := v1.Group("/auth")
		auth.POST("/login", h.Login)
		auth.POST("/logout", withSession, h.Logout)

		authed := auth.Group("", withSession, middleware.RequireAuth())
		authed.GET("/session", h.CurrentSession)
		authed.GET("/sessions", h.ListSessions)
		authed.DELETE("/sessions/:sessionId", h.RevokeSession)

		profile := v1.Group("/profile", withSession, middleware.RequireAuth())
		profile.POST("/avatar", h.UploadAvatar)

		bookings := v1.Group("/bookings", withSession, middleware.RequireAuth())
		bookings.GET("/mine", h.MyBookings)

		drafts := bookings.Group("/drafts", requireRoles(bookerRoles...))
		drafts.POST("", h.StartDraft)
		drafts.GET("/:draftId", h.GetDraft)
		drafts.DELETE("/:draftId", h.DiscardDraft)
		drafts.PUT("/:draftId/package", h.SelectPackage)
		drafts.PUT("/:draftId/schedule", h.SetSchedule)
		drafts.PUT("/:draftId/travelers", h.SetTravelers)
		drafts.PUT("/:draftId/addons", h.SetAddOns)
		drafts.POST("/:draftId/next", h.NextStep)
		drafts.POST("/:draftId/back", h.PreviousStep)
		drafts.POST("/:draftId/submit", h.SubmitDraft)

		admin := v1.Group("/admin", withSession, middleware.RequireAuth())
		users := admin.Group("/users", requireRoles(adminRoles...))
		users.GET("", h.AdminListUsers)
		users.POST("", h.AdminCreateUser)
		users.PUT("/:userId", h.AdminUpdateUser)
		users.PATCH("/:userId/status", h.AdminSetUserStatus)
		admin.GET("/bookings", requireRoles(bookingStaff...), h.AdminListBookings)

		payments := v1.Group("/payments")
		payments.OPTIONS("/create", middleware.OpenCORS())
		payments.POST("/create", middleware.OpenCORS(), h.CreatePayment)
		payments.POST("/callback",
			middleware.WebhookSignature(h.cfg.Payment.WebhookSecret, h.redis, h.metrics.Webhook),
			h.PaymentCallback,
		)
		payments.GET("/purchases/:purchaseId", withSession, middleware.RequireAuth(), h.PurchaseStatus)
	}

	engine.GET(payment.SuccessPath, withSession, h.PaymentLanding(outcomeSuccess))
	engine.GET(payment.FailurePath, withSession, h.PaymentLanding(outcomeFailed))
	engine.GET(payment.CancelledPath, withSession, h.PaymentLanding(outcomeCancelled))

	engine.GET("/dashboard", withSession, h.knownDashboardPath, middleware.GuardFunc(dashboardRoles, observe), h.DashboardView)
	engine.GET("/dashboard/*page", withSession, h.knownDashboardPath, middleware.GuardFunc(dashboardRoles, observe), h.DashboardView)
}

// pagination reads page/perPage query parameters.
func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return limit, offset
}

func currentUser(c *gin.Context) (models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return user, ok
}
