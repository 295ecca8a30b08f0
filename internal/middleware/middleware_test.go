package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"travelhub/api/internal/identity/identitytest"
	"travelhub/api/internal/models"
	"travelhub/api/internal/repository"
	"travelhub/api/internal/roles"
	"travelhub/api/internal/security"
	"travelhub/api/internal/session"
)

type profileTable map[string]models.User

func (p profileTable) FindByEmail(_ context.Context, email string) (models.User, error) {
	u, ok := p[email]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

type harness struct {
	provider *identitytest.Provider
	registry *session.Registry
	router   *gin.Engine

	mu       sync.Mutex
	outcomes []string
}

func (h *harness) lastOutcome() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.outcomes) == 0 {
		return ""
	}
	return h.outcomes[len(h.outcomes)-1]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider := identitytest.NewProvider()
	provider.AddIdentity("admin@x.my", "pw")
	provider.AddIdentity("cust@x.my", "pw")
	profiles := profileTable{
		"admin@x.my": {ID: "usr-1", Email: "admin@x.my", Role: roles.Admin, Status: models.UserStatusActive},
		"cust@x.my":  {ID: "usr-2", Email: "cust@x.my", Role: roles.Customer, Status: models.UserStatusActive},
	}

	h := &harness{provider: provider, registry: session.NewRegistry(provider, profiles, zerolog.Nop())}
	t.Cleanup(h.registry.Close)

	r := gin.New()
	r.Use(sessions.Sessions(SessionCookie, cookie.NewStore([]byte("test-secret"))))
	r.Use(Session(h.registry))

	observe := func(outcome string) {
		h.mu.Lock()
		h.outcomes = append(h.outcomes, outcome)
		h.mu.Unlock()
	}
	r.GET("/dashboard/users", Guard([]roles.Role{roles.SuperAdmin, roles.Admin}, observe), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"email": user.Email})
	})
	r.GET("/broken", func(c *gin.Context) { c.Set(storeKey, "not a store") }, Guard(nil, observe), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	h.router = r
	return h
}

func (h *harness) token(t *testing.T, email string) string {
	t.Helper()
	sess, err := h.provider.SignInWithPassword(context.Background(), email, "pw")
	if err != nil {
		t.Fatal(err)
	}
	return sess.AccessToken
}

func (h *harness) get(path, token, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestGuardResponses(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, "admin@x.my")
	customer := h.token(t, "cust@x.my")

	tests := []struct {
		name     string
		token    string
		accept   string
		status   int
		location string
		redirect string
	}{
		{name: "anonymous navigation", accept: "text/html,application/xhtml+xml", status: http.StatusFound, location: "/login?redirect=%2Fdashboard%2Fusers"},
		{name: "anonymous api", accept: "application/json", status: http.StatusUnauthorized, redirect: "/login?redirect=%2Fdashboard%2Fusers"},
		{name: "unknown token", token: "forged", status: http.StatusUnauthorized, redirect: "/login?redirect=%2Fdashboard%2Fusers"},
		{name: "wrong role", token: customer, status: http.StatusForbidden, redirect: "/dashboard/my-bookings"},
		{name: "allowed", token: admin, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.get("/dashboard/users", tt.token, tt.accept)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.location != "" && rec.Header().Get("Location") != tt.location {
				t.Fatalf("location = %q", rec.Header().Get("Location"))
			}
			if tt.redirect != "" {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatal(err)
				}
				if body["redirect"] != tt.redirect {
					t.Fatalf("redirect = %q, want %q", body["redirect"], tt.redirect)
				}
			}
		})
	}
}

func TestGuardWhileSessionLoads(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, "admin@x.my")

	hold := make(chan struct{})
	h.provider.HoldSessions(hold)

	first := make(chan *httptest.ResponseRecorder)
	go func() { first <- h.get("/dashboard/users", admin, "") }()

	deadline := time.Now().Add(2 * time.Second)
	for h.registry.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec := h.get("/dashboard/users", admin, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status while loading = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}

	close(hold)
	if rec := <-first; rec.Code != http.StatusOK {
		t.Fatalf("bootstrap request status = %d", rec.Code)
	}
}

func TestGuardFailsClosedOnBadState(t *testing.T) {
	h := newHarness(t)
	rec := h.get("/broken", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := h.lastOutcome(); got != "auth_error" {
		t.Fatalf("last outcome = %q", got)
	}
}

func TestRequireAuth(t *testing.T) {
	h := newHarness(t)

	if rec := h.get("/me", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
	rec := h.get("/me", h.token(t, "cust@x.my"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

// seenOnce is a redis.Cmdable that only implements SetNX.
type seenOnce struct {
	redis.Cmdable
	keys map[string]bool
}

func (s *seenOnce) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) *redis.BoolCmd {
	if s.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	s.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func (s *seenOnce) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if s.keys[key] {
			delete(s.keys, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestWebhookSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/callback", WebhookSignature("whsec", &seenOnce{keys: map[string]bool{}}, nil), func(c *gin.Context) {
		raw, _ := c.GetRawData()
		c.String(http.StatusOK, string(raw))
	})

	body := `{"id":"pur_1","status":"paid"}`
	send := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		req.Header.Set(security.HeaderWebhookSignature, sig)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("deadbeef"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature status = %d", rec.Code)
	}

	good := security.SignPayload("whsec", []byte(body))
	rec := send(good)
	if rec.Code != http.StatusOK || rec.Body.String() != body {
		t.Fatalf("good signature: %d %q", rec.Code, rec.Body.String())
	}
	if rec := send("sha256=" + good); rec.Code != http.StatusConflict {
		t.Fatalf("replay status = %d", rec.Code)
	}
}

func TestWebhookFailedDeliveryCanBeRetried(t *testing.T) {
	gin.SetMode(gin.TestMode)
	seen := &seenOnce{keys: map[string]bool{}}
	failing := true
	r := gin.New()
	r.POST("/callback", WebhookSignature("whsec", seen, nil), func(c *gin.Context) {
		if failing {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue_unavailable"})
			return
		}
		c.Status(http.StatusAccepted)
	})

	body := `{"id":"pur_1","status":"paid"}`
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		req.Header.Set(security.HeaderWebhookSignature, security.SignPayload("whsec", []byte(body)))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusServiceUnavailable {
		t.Fatalf("first delivery = %d", code)
	}
	if len(seen.keys) != 0 {
		t.Fatalf("failed delivery left replay key: %v", seen.keys)
	}

	failing = false
	if code := send(); code != http.StatusAccepted {
		t.Fatalf("retry = %d", code)
	}
	if code := send(); code != http.StatusConflict {
		t.Fatalf("replay after success = %d", code)
	}
}

func TestOpenCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://travelhub.my"}, "/pay"))
	r.OPTIONS("/pay", OpenCORS())
	r.POST("/pay", OpenCORS(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/pay", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
}
