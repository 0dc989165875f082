// Package config loads service configuration from the environment.
//
// Values come from environment variables (parsed with github.com/caarlos0/env); a local
// .env file is loaded first when present. Empty DATABASE_URL / REDIS_URL select the
// in-memory stores.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"adminguard/pkg/platform/middleware/metadata"
)

// Config is the root service configuration.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"   envDefault:"info"`

	Server      Server
	Security    Security
	Session     Session
	Lockout     Lockout
	RateLimit   RateLimit
	Audit       Audit
	Permissions Permissions
	Postgres    PostgresConfig `envPrefix:"DATABASE_"`
	Redis       RedisConfig    `envPrefix:"REDIS_"`
	Kafka       KafkaConfig    `envPrefix:"KAFKA_"`
	Bootstrap   Bootstrap      `envPrefix:"BOOTSTRAP_ADMIN_"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// TrustedProxies lists the CIDRs (or bare addresses) of load balancers whose
	// X-Forwarded-For and X-Real-IP headers are believed. Empty trusts no one.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// TrustedProxyPrefixes parses TrustedProxies.
func (s Server) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes, err := metadata.ParseTrustedProxies(s.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	return prefixes, nil
}

// Security holds token signing settings.
type Security struct {
	JWTSigningKey   string        `env:"JWT_SIGNING_KEY"   envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer       string        `env:"JWT_ISSUER"        envDefault:"adminguard"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
}

// Session holds session lifecycle settings. Session lifetime follows the refresh token TTL.
type Session struct {
	MaxPerUser     int           `env:"MAX_SESSIONS_PER_USER"   envDefault:"5"`
	SweepInterval  time.Duration `env:"SESSION_SWEEP_INTERVAL"  envDefault:"5m"`
	RetentionGrace time.Duration `env:"SESSION_RETENTION_GRACE" envDefault:"24h"`
}

// Lockout holds the login-attempt policy.
type Lockout struct {
	Threshold          int           `env:"LOCKOUT_THRESHOLD"          envDefault:"5"`
	Window             time.Duration `env:"LOCKOUT_WINDOW"             envDefault:"15m"`
	Duration           time.Duration `env:"LOCKOUT_DURATION"           envDefault:"30m"`
	SuspiciousAccounts int           `env:"SUSPICIOUS_SOURCE_ACCOUNTS" envDefault:"10"`
}

// RateLimit holds per-role ceilings (requests per window).
type RateLimit struct {
	Window     time.Duration `env:"RATE_LIMIT_WINDOW"      envDefault:"1m"`
	SuperAdmin int           `env:"RATE_LIMIT_SUPER_ADMIN" envDefault:"200"`
	Admin      int           `env:"RATE_LIMIT_ADMIN"       envDefault:"150"`
	Moderator  int           `env:"RATE_LIMIT_MODERATOR"   envDefault:"100"`
	Support    int           `env:"RATE_LIMIT_SUPPORT"     envDefault:"80"`
	Anonymous  int           `env:"RATE_LIMIT_ANONYMOUS"   envDefault:"60"`
	BulkExport int           `env:"RATE_LIMIT_BULK_EXPORT" envDefault:"5"`
	Disabled   bool          `env:"DISABLE_RATE_LIMITING"  envDefault:"false"`
}

// Audit holds recorder and export settings.
type Audit struct {
	AsyncBuffer   int           `env:"AUDIT_ASYNC_BUFFER"    envDefault:"1024"`
	Workers       int           `env:"AUDIT_WORKERS"         envDefault:"2"`
	MaxExportSpan time.Duration `env:"AUDIT_MAX_EXPORT_SPAN" envDefault:"2160h"`
}

// Permissions resolves the partial cells of the role matrix for this deployment.
type Permissions struct {
	MatrixVersion string   `env:"PERMISSION_MATRIX_VERSION" envDefault:"2024-01"`
	PartialGrants []string `env:"PERMISSION_PARTIAL_GRANTS" envSeparator:","`
}

// PostgresConfig selects the Postgres-backed stores when URL is set.
type PostgresConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"MIGRATE_ON_START"  envDefault:"true"`
}

// RedisConfig selects the Redis-backed session and rate-limit stores when URL is set.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE"      envDefault:"20"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT"  envDefault:"3s"`
}

// KafkaConfig enables the security event stream when Brokers is set.
type KafkaConfig struct {
	Brokers       []string `env:"BROKERS"        envSeparator:","`
	SecurityTopic string   `env:"SECURITY_TOPIC" envDefault:"adminguard.security-events"`
	Partitions    int32    `env:"PARTITIONS"     envDefault:"3"`
	Replication   int16    `env:"REPLICATION"    envDefault:"1"`

	BreakerThreshold int           `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN"  envDefault:"30s"`
}

// Bootstrap seeds a super admin so a fresh deployment can sign in. Admin login requires
// MFA, so MFASecret (base32 TOTP) is needed for the seeded account to use /auth/admin/login.
type Bootstrap struct {
	Email     string `env:"EMAIL"`
	Password  string `env:"PASSWORD"`
	MFASecret string `env:"MFA_SECRET"`
}

// Load reads .env (if present) and the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production guardrails.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if c.IsProduction() && len(c.Security.JWTSigningKey) < 32 {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be at least 32 bytes in production"))
	}
	if c.Security.AccessTokenTTL <= 0 || c.Security.RefreshTokenTTL <= c.Security.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must exceed a positive ACCESS_TOKEN_TTL"))
	}
	if c.Session.MaxPerUser < 0 {
		errs = append(errs, errors.New("MAX_SESSIONS_PER_USER cannot be negative"))
	}
	if c.Lockout.Threshold < 1 || c.Lockout.Window <= 0 || c.Lockout.Duration <= 0 {
		errs = append(errs, errors.New("lockout threshold, window and duration must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.Audit.MaxExportSpan <= 0 {
		errs = append(errs, errors.New("AUDIT_MAX_EXPORT_SPAN must be positive"))
	}
	return errors.Join(errs...)
}
