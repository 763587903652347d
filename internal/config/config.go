package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"plannr/internal/models"
)

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketAvatars string
	UseSSL        bool
	Region        string
	MaxAvatarSize int64
}

// RoleDurations holds one lifetime per actor kind. Access token lifetimes
// differ between actors on purpose and are configured independently.
type RoleDurations struct {
	User   time.Duration
	Vendor time.Duration
	Admin  time.Duration
}

func (d RoleDurations) For(role models.Role) time.Duration {
	switch role {
	case models.RoleVendor:
		return d.Vendor
	case models.RoleAdmin:
		return d.Admin
	default:
		return d.User
	}
}

type SecurityConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTTL        RoleDurations
	RefreshTTL       time.Duration
	ExpiryBuffer     time.Duration
}

type ChallengeConfig struct {
	CodeTTL    time.Duration
	PendingTTL time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type AdminConfig struct {
	SeedEmail    string
	SeedPassword string
	SeedName     string
}

type JobsConfig struct {
	LoginEventRetention time.Duration
	PruneSchedule       string
	ReconcileSchedule   string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Challenge        ChallengeConfig
	RateLimit        RateLimitConfig
	Admin            AdminConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("PLANNR")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v,
		"postgres.dsn",
		"redis.password",
		"storage.endpoint", "storage.accesskey", "storage.secretkey",
		"security.jwtaccesssecret", "security.jwtrefreshsecret",
		"admin.seedemail", "admin.seedpassword",
	)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, decoderOptions); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Security.JWTAccessSecret == "" || cfg.Security.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("security.jwtaccesssecret and security.jwtrefreshsecret are required")
	}

	return &cfg, nil
}

// envKeyReplacer maps security.jwtaccesssecret to PLANNR_SECURITY_JWTACCESSSECRET.
var envKeyReplacer = strings.NewReplacer(".", "_")

// bindEnv registers keys that have no default so AutomaticEnv can see them
// during Unmarshal.
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

func decoderOptions(dc *mapstructure.DecoderConfig) {
	dc.TagName = "mapstructure"
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.requesttimeout", "10s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.automigrate", true)

	setRedisDefaults(v)

	v.SetDefault("storage.bucketavatars", "plannr-avatars")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.maxavatarsize", 5<<20)

	v.SetDefault("security.accessttl.user", "24h")
	v.SetDefault("security.accessttl.vendor", "1h")
	v.SetDefault("security.accessttl.admin", "2h")
	v.SetDefault("security.refreshttl", "168h") // 7 days
	v.SetDefault("security.expirybuffer", "30s")

	v.SetDefault("challenge.codettl", "10m")
	v.SetDefault("challenge.pendingttl", "24h")

	v.SetDefault("ratelimit.requests", 20)
	v.SetDefault("ratelimit.window", "1m")

	v.SetDefault("admin.seedname", "Administrator")

	v.SetDefault("jobs.logineventretention", "2160h") // 90 days
	v.SetDefault("jobs.pruneschedule", "0 30 3 * * *")
	v.SetDefault("jobs.reconcileschedule", "0 */15 * * * *")
}

func setRedisDefaults(v *viper.Viper) {
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "plannr:tasks")
	v.SetDefault("redis.group", "plannr-workers")
	v.SetDefault("redis.consumer", "worker-1")
}
