package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// AuthChannel carries auth-state events between API instances.
	AuthChannel string
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketAvatars string
	UseSSL        bool
	Region        string
	// MaxAvatarBytes caps an avatar upload.
	MaxAvatarBytes int64
	AvatarURLTTL   time.Duration
}

type SecurityConfig struct {
	JWTAccessSecret string
	JWTAccessTTL    time.Duration
	CookieSecret    string
	CookieSecure    bool
	MaxSessions     int
	// SessionIdleTTL bounds how long an unused session store stays in memory.
	SessionIdleTTL time.Duration
	// SessionRecheck is how often a cached session is confirmed against the
	// session table and the profile status.
	SessionRecheck time.Duration
}

type PaymentConfig struct {
	BaseURL       string
	APIKey        string
	BrandID       string
	Currency      string
	WebhookSecret string
	// CallbackURL is handed to the gateway as the purchase webhook target.
	CallbackURL string
	// ReconcileAfter is the age after which an unpaid booking with a purchase is re-polled.
	ReconcileAfter time.Duration
}

type BookingConfig struct {
	DraftIdleTTL time.Duration
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Payment          PaymentConfig
	Booking          BookingConfig
	Queue            QueueConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("TRAVELHUB")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindSecrets(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Environment == "production" {
		if c.Security.JWTAccessSecret == "" {
			return fmt.Errorf("security.jwtaccesssecret is required in production")
		}
		if c.Payment.APIKey == "" || c.Payment.BrandID == "" {
			return fmt.Errorf("payment.apikey and payment.brandid are required in production")
		}
	}
	if c.Security.JWTAccessTTL <= 0 {
		return fmt.Errorf("security.jwtaccessttl must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.authchannel", "auth:events")

	v.SetDefault("storage.bucketavatars", "travelhub-avatars")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.maxavatarbytes", 2<<20)
	v.SetDefault("storage.avatarurlttl", "1h")

	v.SetDefault("security.jwtaccessttl", "12h")
	v.SetDefault("security.cookiesecret", "dev_cookie_secret_change_me")
	v.SetDefault("security.cookiesecure", false)
	v.SetDefault("security.maxsessions", 10)
	v.SetDefault("security.sessionidlettl", "2h")
	v.SetDefault("security.sessionrecheck", "30s")

	v.SetDefault("payment.baseurl", "https://gate.chip-in.asia/api/v1")
	v.SetDefault("payment.currency", "MYR")
	v.SetDefault("payment.reconcileafter", "15m")

	v.SetDefault("booking.draftidlettl", "1h")

	v.SetDefault("queue.stream", "payments:reconcile")
	v.SetDefault("queue.group", "payment-workers")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "30s")
}

var envKeyReplacer = strings.NewReplacer(".", "_")

// secretKeys have no default. AutomaticEnv only resolves keys viper already
// knows about, so these are bound explicitly or Unmarshal never sees them.
var secretKeys = []string{
	"postgres.dsn",
	"redis.password",
	"storage.endpoint",
	"storage.accesskey",
	"storage.secretkey",
	"security.jwtaccesssecret",
	"payment.apikey",
	"payment.brandid",
	"payment.webhooksecret",
	"payment.callbackurl",
	"allowcorsorigins",
}

func bindSecrets(v *viper.Viper) error {
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}
