package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	adminadapters "adminguard/internal/admin/adapters"
	adminhandler "adminguard/internal/admin/handler"
	adminservice "adminguard/internal/admin/service"
	auditservice "adminguard/internal/audit/service"
	auditstore "adminguard/internal/audit/store"
	authhandler "adminguard/internal/auth/handler"
	"adminguard/internal/auth/login"
	sessionservice "adminguard/internal/auth/service"
	sessionstore "adminguard/internal/auth/store/session"
	"adminguard/internal/auth/token"
	httpapi "adminguard/internal/http"
	"adminguard/internal/identity/credentials"
	identity "adminguard/internal/identity/models"
	identitystore "adminguard/internal/identity/store"
	attempts "adminguard/internal/loginattempt/models"
	attemptservice "adminguard/internal/loginattempt/service"
	attemptstore "adminguard/internal/loginattempt/store"
	"adminguard/internal/permission"
	"adminguard/internal/pipeline"
	"adminguard/internal/platform/config"
	"adminguard/internal/platform/httpserver"
	"adminguard/internal/platform/kafka"
	"adminguard/internal/platform/logger"
	"adminguard/internal/platform/metrics"
	"adminguard/internal/platform/postgres"
	"adminguard/internal/platform/redis"
	ratelimitconfig "adminguard/internal/ratelimit/config"
	ratelimitmetrics "adminguard/internal/ratelimit/metrics"
	ratelimitservice "adminguard/internal/ratelimit/service"
	ratelimitstore "adminguard/internal/ratelimit/store"
	"adminguard/internal/security"
	"adminguard/pkg/platform/circuit"
	"adminguard/pkg/platform/sentinel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// identityStore is satisfied by both credential store implementations.
type identityStore interface {
	login.CredentialStore
	Create(ctx context.Context, ident *identity.Identity) error
}

// stores are the backends chosen from configuration.
type stores struct {
	identities identityStore
	attempts   attemptservice.Store
	sessions   sessionservice.Store
	counters   ratelimitservice.CounterStore
	audit      auditservice.Store
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	httpMetrics := metrics.New(reg)

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	st := selectStores(cfg, db, rdb)
	log.Info("stores selected", "postgres", db != nil, "redis", rdb != nil)

	producer, err := kafka.NewProducer(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	sinks := []security.Sink{security.NewLogSink(log.With("channel", "security"))}
	if producer != nil {
		breaker := circuit.New("kafka", circuit.WithFailureThreshold(cfg.Kafka.BreakerThreshold), circuit.WithCooldown(cfg.Kafka.BreakerCooldown))
		sinks = append(sinks, security.NewBreakerSink(security.NewKafkaSink(producer), breaker, log))
	}
	stream, err := security.NewStream(sinks, security.WithLogger(log), security.WithRegisterer(reg))
	if err != nil {
		return err
	}

	matrix, err := permission.NewMatrix(cfg.Permissions.MatrixVersion, cfg.Permissions.PartialGrants)
	if err != nil {
		return fmt.Errorf("resolve permission matrix: %w", err)
	}

	sessions, err := sessionservice.New(st.sessions,
		sessionservice.WithTTL(cfg.Security.RefreshTokenTTL),
		sessionservice.WithMaxPerUser(cfg.Session.MaxPerUser),
		sessionservice.WithRetention(cfg.Session.RetentionGrace),
		sessionservice.WithSweepInterval(cfg.Session.SweepInterval),
		sessionservice.WithLogger(log),
		sessionservice.WithMetrics(sessionservice.NewMetrics(reg)),
	)
	if err != nil {
		return err
	}
	tokens, err := token.New(cfg.Security.JWTSigningKey, cfg.Security.JWTIssuer, matrix, sessions,
		token.WithTTLs(cfg.Security.AccessTokenTTL, cfg.Security.RefreshTokenTTL))
	if err != nil {
		return err
	}
	tracker, err := attemptservice.New(st.attempts,
		attemptservice.WithPolicy(attempts.Policy{
			Threshold: cfg.Lockout.Threshold,
			Window:    cfg.Lockout.Window,
			Duration:  cfg.Lockout.Duration,
		}),
		attemptservice.WithSuspiciousAccounts(cfg.Lockout.SuspiciousAccounts),
		attemptservice.WithPublisher(stream),
		attemptservice.WithLogger(log),
		attemptservice.WithMetrics(attemptservice.NewMetrics(reg)),
	)
	if err != nil {
		return err
	}
	limiter, err := ratelimitservice.New(st.counters,
		ratelimitservice.WithLimits(limitsFrom(cfg.RateLimit)),
		ratelimitservice.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitservice.WithPublisher(stream),
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(ratelimitmetrics.New(reg)),
	)
	if err != nil {
		return err
	}
	recorder, err := auditservice.New(st.audit,
		auditservice.WithLogger(log),
		auditservice.WithFallbackLogger(log.With("channel", "audit_fallback")),
		auditservice.WithMetrics(auditservice.NewMetrics(reg)),
		auditservice.WithPublisher(stream),
		auditservice.WithAsyncBuffer(cfg.Audit.AsyncBuffer),
		auditservice.WithWorkers(cfg.Audit.Workers),
		auditservice.WithMaxExportSpan(cfg.Audit.MaxExportSpan),
	)
	if err != nil {
		return err
	}
	loginService, err := login.New(st.identities, tracker, sessions, tokens, login.WithLogger(log))
	if err != nil {
		return err
	}
	admins, err := adminservice.New(adminadapters.NewUserStoreAdapter(st.identities), sessions, adminservice.WithLogger(log))
	if err != nil {
		return err
	}

	if err := bootstrapAdmin(ctx, cfg.Bootstrap, st.identities, log); err != nil {
		return err
	}

	guard := &pipeline.Guard{Limiter: limiter, Tokens: tokens, Sessions: sessions, Recorder: recorder, Logger: log}
	health := map[string]httpapi.HealthCheck{}
	if db != nil {
		health["postgres"] = db.PingContext
	}
	if rdb != nil {
		health["redis"] = rdb.Health
	}
	proxies, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:         log,
		Metrics:        httpMetrics,
		Registry:       reg,
		Health:         health,
		TrustedProxies: proxies,
	},
		authhandler.New(loginService, sessions, guard, log),
		adminhandler.New(admins, recorder, tracker, guard, log),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting adminguard", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error { return sessions.Run(gctx) })
	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error { return stream.Run(gctx) })

	err = g.Wait()
	if producer != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if cerr := producer.Close(closeCtx); cerr != nil {
			log.Error("kafka flush failed", "error", cerr)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("adminguard stopped")
	return nil
}

// selectStores picks Postgres for identities, attempts and audit records and Redis for
// sessions and rate-limit counters, falling back to memory for anything unconfigured.
func selectStores(cfg config.Config, db *sql.DB, rdb *redis.Client) stores {
	st := stores{
		identities: identitystore.NewInMemoryStore(),
		attempts:   attemptstore.NewInMemoryStore(),
		sessions:   sessionstore.New(),
		counters:   ratelimitstore.NewInMemoryStore(),
		audit:      auditstore.NewInMemoryStore(),
	}
	if db != nil {
		st.identities = identitystore.NewPostgres(db)
		st.attempts = attemptstore.NewPostgres(db)
		st.audit = auditstore.NewPostgres(db)
	}
	if rdb != nil {
		st.sessions = sessionstore.NewRedis(rdb.Client, sessionstore.WithRetention(cfg.Session.RetentionGrace))
		st.counters = ratelimitstore.NewRedis(rdb.Client)
	}
	return st
}

func limitsFrom(c config.RateLimit) ratelimitconfig.Limits {
	return ratelimitconfig.Limits{
		Window: c.Window,
		ByRole: map[permission.Role]int{
			permission.RoleSuperAdmin: c.SuperAdmin,
			permission.RoleAdmin:      c.Admin,
			permission.RoleModerator:  c.Moderator,
			permission.RoleSupport:    c.Support,
		},
		Anonymous:  c.Anonymous,
		BulkExport: c.BulkExport,
	}
}

// bootstrapAdmin seeds a super admin so a fresh deployment can sign in. An existing
// identity with the same email is left untouched.
func bootstrapAdmin(ctx context.Context, cfg config.Bootstrap, store identityStore, log *slog.Logger) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}
	hash, err := credentials.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	ident, err := identity.NewIdentity(cfg.Email, "Bootstrap Admin", permission.RoleSuperAdmin, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if cfg.MFASecret != "" {
		secret, err := credentials.NormalizeTOTPSecret(cfg.MFASecret)
		if err != nil {
			return fmt.Errorf("BOOTSTRAP_ADMIN_MFA_SECRET: %w", err)
		}
		ident.MFAEnabled = true
		ident.MFASecret = secret
	}
	if err := store.Create(ctx, ident); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			log.Info("bootstrap admin already exists", "email", ident.Email)
			return nil
		}
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	log.Info("bootstrap admin created", "email", ident.Email, "user_id", ident.ID.String(), "mfa_enabled", ident.MFAEnabled)
	if !ident.MFAEnabled {
		log.Warn("bootstrap admin has no MFA secret; /auth/admin/login will reject it", "email", ident.Email)
	}
	return nil
}
