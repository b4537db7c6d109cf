// Package config loads process configuration from built-in defaults, an
// optional YAML file and VIDSHARE_ environment variables, in that order of
// precedence.
package config

import (
	"time"

	"vidshare/internal/ranking"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Storage     StorageConfig     `koanf:"storage"`
	Realtime    RealtimeConfig    `koanf:"realtime"`
	Ranking     RankingConfig     `koanf:"ranking"`
	Auth        AuthConfig        `koanf:"auth"`
	Log         LogConfig         `koanf:"log"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
}

type ServerConfig struct {
	Addr            string          `koanf:"addr" validate:"required"`
	TLSCert         string          `koanf:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey          string          `koanf:"tls_key" validate:"required_with=TLSCert"`
	ReadTimeout     time.Duration   `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration   `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration   `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string        `koanf:"cors_origins"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	GlobalRPS   float64       `koanf:"global_rps" validate:"gte=0"`
	GlobalBurst int           `koanf:"global_burst" validate:"gte=0"`
	PerIP       int           `koanf:"per_ip" validate:"gte=0"`
	PerIPWindow time.Duration `koanf:"per_ip_window" validate:"gt=0"`
	LoginLimit  int           `koanf:"login_limit" validate:"gte=0"`
	LoginWindow time.Duration `koanf:"login_window" validate:"gt=0"`
	// RedisAddr shares login attempt counters between instances when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
}

type StorageConfig struct {
	Driver         string         `koanf:"driver" validate:"oneof=json postgres"`
	DataPath       string         `koanf:"data_path" validate:"required_if=Driver json"`
	PersistTimeout time.Duration  `koanf:"persist_timeout" validate:"gt=0"`
	Postgres       PostgresConfig `koanf:"postgres"`
}

type PostgresConfig struct {
	DSN            string        `koanf:"dsn"`
	MaxConns       int32         `koanf:"max_conns" validate:"gte=0"`
	MinConns       int32         `koanf:"min_conns" validate:"gte=0"`
	AcquireTimeout time.Duration `koanf:"acquire_timeout" validate:"gte=0"`
	AppName        string        `koanf:"app_name"`
}

type RealtimeConfig struct {
	Bus             string        `koanf:"bus" validate:"oneof=memory redis"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	SendBuffer      int           `koanf:"send_buffer" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	PongWait        time.Duration `koanf:"pong_wait" validate:"gt=0"`
	MessagesPerSec  float64       `koanf:"messages_per_sec" validate:"gt=0"`
	MessageBurst    int           `koanf:"message_burst" validate:"gt=0"`
	PublishTimeout  time.Duration `koanf:"publish_timeout" validate:"gt=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" validate:"gt=0"`
	Redis           RedisConfig   `koanf:"redis"`
}

type RedisConfig struct {
	Addrs         []string `koanf:"addrs"`
	Username      string   `koanf:"username"`
	Password      string   `koanf:"password"`
	MasterName    string   `koanf:"master_name"`
	ChannelPrefix string   `koanf:"channel_prefix"`
	PoolSize      int      `koanf:"pool_size" validate:"gte=0"`
	TLSCA         string   `koanf:"tls_ca"`
	TLSCert       string   `koanf:"tls_cert"`
	TLSKey        string   `koanf:"tls_key"`
	TLSServerName string   `koanf:"tls_server_name"`
	TLSSkipVerify bool     `koanf:"tls_skip_verify"`
}

type RankingConfig struct {
	Weights ranking.Weights    `koanf:"weights"`
	Score   ranking.ScoreModel `koanf:"score"`
	// FeedLimit caps the number of videos returned by one feed request.
	FeedLimit int `koanf:"feed_limit" validate:"gt=0,lte=500"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret" validate:"required,min=32"`
	Issuer    string        `koanf:"issuer" validate:"required"`
	TokenTTL  time.Duration `koanf:"token_ttl" validate:"gt=0"`
	// AllowSignup disables public registration when false.
	AllowSignup bool `koanf:"allow_signup"`
	// RevocationStore keeps logged-out token ids. postgres shares them across
	// replicas and reuses storage.postgres.dsn when RevocationDSN is empty.
	RevocationStore string `koanf:"revocation_store" validate:"oneof=memory postgres"`
	RevocationDSN   string `koanf:"revocation_dsn"`
	// CookieDomain scopes the session cookie; empty means the request host.
	CookieDomain string `koanf:"cookie_domain"`
	// CookieSecure marks the session cookie Secure even on plain HTTP, for
	// deployments behind a TLS terminating proxy that drops X-Forwarded-Proto.
	CookieSecure bool `koanf:"cookie_secure"`
}

type LogConfig struct {
	Level     string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format    string `koanf:"format" validate:"oneof=json text"`
	AddSource bool   `koanf:"add_source"`
}

type MaintenanceConfig struct {
	Interval     time.Duration `koanf:"interval" validate:"gt=0"`
	RepairDrift  bool          `koanf:"repair_drift"`
	RunOnStartup bool          `koanf:"run_on_startup"`
}

// Default returns the configuration used before any file or environment
// override is applied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				GlobalRPS:   0,
				PerIP:       300,
				PerIPWindow: time.Minute,
				LoginLimit:  10,
				LoginWindow: time.Minute,
			},
		},
		Storage: StorageConfig{
			Driver:         "json",
			DataPath:       "data/vidshare.json",
			PersistTimeout: 10 * time.Second,
			Postgres: PostgresConfig{
				AppName: "vidshare",
			},
		},
		Realtime: RealtimeConfig{
			Bus:             "memory",
			SendBuffer:      32,
			WriteTimeout:    5 * time.Second,
			PongWait:        60 * time.Second,
			MessagesPerSec:  5,
			MessageBurst:    10,
			PublishTimeout:  2 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
			Redis: RedisConfig{
				ChannelPrefix: "vidshare",
			},
		},
		Ranking: RankingConfig{
			Weights:   ranking.DefaultWeights(),
			Score:     ranking.DefaultScoreModel(),
			FeedLimit: 50,
		},
		Auth: AuthConfig{
			Issuer:          "vidshare",
			TokenTTL:        24 * time.Hour,
			AllowSignup:     true,
			RevocationStore: "memory",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Maintenance: MaintenanceConfig{
			Interval:     time.Minute,
			RepairDrift:  true,
			RunOnStartup: true,
		},
	}
}
