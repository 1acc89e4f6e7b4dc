package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-agenda/internal/api/router"
	"github.com/wolfman30/dental-agenda/internal/appointments"
	"github.com/wolfman30/dental-agenda/internal/audit"
	appconfig "github.com/wolfman30/dental-agenda/internal/config"
	"github.com/wolfman30/dental-agenda/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-agenda/internal/http/middleware"
	"github.com/wolfman30/dental-agenda/internal/identity"
	"github.com/wolfman30/dental-agenda/internal/notify"
	"github.com/wolfman30/dental-agenda/internal/observability/metrics"
	"github.com/wolfman30/dental-agenda/internal/preferences"
	"github.com/wolfman30/dental-agenda/internal/share"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// App is the application context built once at startup. Everything that
// used to be ambient lives here and is handed to its consumers explicitly.
type App struct {
	Config *appconfig.Config
	Logger *logging.Logger

	Redis *redis.Client
	DB    *sql.DB

	Store       appointments.Store
	Feed        appointments.ChangeFeed
	Service     *appointments.Service
	Sweeper     *appointments.CompletionSweeper
	Verifier    *identity.Verifier
	Authorizer  *identity.Authorizer
	Revocations identity.Revocations
	Themes      preferences.ThemeStore
	Audit       *audit.Service
	Email       notify.EmailSender
	Share       *share.Builder
	Mailer      *notify.SummaryMailer
	Metrics     *metrics.AppointmentMetrics
	Registry    *prometheus.Registry
	RateLimiter httpmiddleware.Limiter

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Options overrides pieces of the context, mostly for tests.
type Options struct {
	// AWS is the loaded SDK config. Nil forces the memory store and the stub
	// email sender.
	AWS *aws.Config
	// Redis replaces the client built from config.
	Redis *redis.Client
}

// New wires the application context. Optional backends degrade to their
// in-process variants when not configured.
func New(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	appCtx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config: cfg,
		Logger: logger,
		ctx:    appCtx,
		cancel: cancel,
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.NewAppointmentMetrics(app.Registry)

	app.Redis = opts.Redis
	if app.Redis == nil {
		app.Redis = BuildRedisClient(ctx, cfg, logger, true)
	}

	switch {
	case cfg.UseMemoryStore || opts.AWS == nil:
		logger.Warn("using in-memory appointment store; data is lost on restart")
		app.Store = appointments.NewMemoryStore()
	default:
		app.Store = appointments.NewDynamoStore(dynamodb.NewFromConfig(*opts.AWS), cfg.AppointmentsTable, logger)
	}

	if app.Redis != nil {
		app.Feed = appointments.NewRedisFeed(app.Redis, cfg.ChangeChannel, logger)
		app.Revocations = identity.NewRedisRevocations(app.Redis)
		app.Themes = preferences.NewRedisThemeStore(app.Redis)
	} else {
		logger.Warn("redis not configured; live updates and sign-outs stay in this process")
		app.Feed = appointments.NewMemoryFeed()
		app.Revocations = identity.NewMemoryRevocations()
		app.Themes = preferences.NewMemoryThemeStore()
	}

	db, err := OpenAuditDB(ctx, cfg.DatabaseURL)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.DB = db

	serviceOpts := []appointments.Option{appointments.WithMetrics(app.Metrics)}
	if db != nil {
		app.Audit = audit.NewService(db)
		serviceOpts = append(serviceOpts, appointments.WithAudit(app.Audit))
	}
	app.Service = appointments.NewService(app.Store, app.Feed, logger, serviceOpts...)

	loc := cfg.Location()
	if cfg.AutoCompleteEnabled {
		app.Sweeper = appointments.NewCompletionSweeper(app.Service, loc, logger)
	}

	app.Verifier = identity.NewVerifier(identity.CognitoConfig{
		Region:     cfg.CognitoRegion,
		UserPoolID: cfg.CognitoUserPoolID,
		ClientID:   cfg.CognitoClientID,
	}, cfg.AdminJWTSecret)
	app.Authorizer = identity.NewAuthorizer(cfg.AdminEmail)
	if cfg.AdminEmail == "" {
		logger.Warn("ADMIN_EMAIL not set; nobody can open the dashboard")
	}

	email, provider, reason := BuildEmailSender(cfg, opts.AWS, logger)
	if reason != "" {
		logger.Warn("email sender fell back", "provider", provider, "reason", reason)
	}
	app.Email = email
	app.Share = share.NewBuilder(cfg.PublicBaseURL, cfg.ClinicName, cfg.DefaultPhoneRegion)
	app.Mailer = notify.NewSummaryMailer(email, app.Share, loc, logger)
	if app.Redis != nil {
		app.RateLimiter = httpmiddleware.NewRedisRateLimiter(app.Redis, "dental:ratelimit", cfg.PublicRateLimit, cfg.PublicRateBurst)
	} else {
		app.RateLimiter = httpmiddleware.NewRateLimiter(appCtx, cfg.PublicRateLimit, cfg.PublicRateBurst)
	}

	logger.Info("application context ready",
		"store", fmt.Sprintf("%T", app.Store),
		"redis", app.Redis != nil,
		"audit", app.Audit != nil,
		"email", provider,
	)
	return app, nil
}

// Start launches background workers. They stop on Close.
func (a *App) Start() {
	if a.Sweeper == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Sweeper.Run(a.ctx, a.Config.AutoCompleteInterval)
	}()
}

// Handler builds the HTTP router over the context.
func (a *App) Handler() http.Handler {
	loc := a.Config.Location()

	checks := map[string]handlers.HealthCheck{}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	if a.DB != nil {
		checks["postgres"] = a.DB.PingContext
	}

	var auditQuerier handlers.AuditQuerier
	if a.Audit != nil {
		auditQuerier = a.Audit
	}

	return router.New(&router.Config{
		Logger:              a.Logger,
		CORSAllowedOrigins:  a.Config.CORSAllowedOrigins,
		TrustedProxies:      a.Config.TrustedProxies,
		Verifier:            a.Verifier,
		Revocations:         a.Revocations,
		Authorizer:          a.Authorizer,
		PublicRateLimiter:   a.RateLimiter,
		Health:              handlers.NewHealthHandler(checks),
		MetricsHandler:      promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		Session:             handlers.NewSessionHandler(a.Authorizer, a.Revocations, a.Logger),
		AdminAppointments:   handlers.NewAdminAppointmentsHandler(a.Service, a.Share, loc, a.Logger),
		PatientAppointments: handlers.NewPatientAppointmentsHandler(a.Service, a.Share, a.Mailer, loc, a.Logger),
		Live:                handlers.NewLiveHandler(a.Service, a.Config.CORSAllowedOrigins, a.Logger),
		Preferences:         handlers.NewPreferencesHandler(a.Themes, a.Logger),
		Audit:               handlers.NewAuditHandler(auditQuerier, a.Logger),
	})
}

// Close stops workers and releases connections in reverse order of creation.
// It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		a.cancel()
		a.wg.Wait()
		if a.DB != nil {
			if err := a.DB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close audit db: %w", err))
			}
		}
		if a.Redis != nil {
			if err := a.Redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
				errs = append(errs, fmt.Errorf("close redis: %w", err))
			}
		}
	})
	return errors.Join(errs...)
}
