package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/toko-pos/internal/analytics"
	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/checkout"
	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/config"
	"github.com/noah-isme/toko-pos/internal/health"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/ratelimit"
	"github.com/noah-isme/toko-pos/internal/receipt"
	"github.com/noah-isme/toko-pos/internal/register"
	"github.com/noah-isme/toko-pos/internal/resilience"
	"github.com/noah-isme/toko-pos/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := cfg.Obs.MetricsEnabled
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	if err := resilience.RegisterMetrics(nil); err != nil {
		logger.Error().Err(err).Msg("register breaker metrics")
	}

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "toko-pos",
			ServiceVersion: cfg.Obs.Version,
			Environment:    cfg.AppEnv,
			Exporter:       cfg.Obs.TracingExporter,
			Endpoint:       cfg.Obs.OTLPEndpoint,
			SamplingRatio:  cfg.Obs.SamplingRatio,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := connect(ctx, cfg, logger, metricsEnabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect dependencies")
	}
	defer deps.Close()

	if cfg.RunMigrations && deps.Pool != nil {
		if err := deps.migrate(ctx, cfg, logger); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	products := deps.catalogStore(cfg, logger)
	catalogService, err := catalog.NewService(catalog.ServiceConfig{Store: products, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	sessions := register.NewManager(register.ManagerConfig{
		TaxRate: cfg.TaxRate,
		IdleTTL: cfg.SessionIdleTTL,
		Logger:  logger,
	})
	go sessions.Run(ctx, time.Minute)
	registerHandler := register.NewHandler(register.HandlerConfig{Manager: sessions, Products: products, Logger: logger})

	ledger := deps.salesLedger()
	bus, closeBus, err := deps.eventBus(cfg, ledger, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise event bus")
	}
	defer closeBus()

	checkoutService, err := checkout.NewService(checkout.Config{
		Sessions:   sessions,
		Serializer: receipt.NewSerializer(),
		Slot:       deps.receiptSlot(cfg, logger),
		Events:     bus,
		View: receipt.ViewConfig{
			CurrencySymbol: cfg.CurrencySymbol,
			StoreName:      cfg.StoreName,
			StoreTagline:   cfg.StoreTagline,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise checkout service")
	}
	checkoutHandler := checkout.NewHandler(checkoutService)

	analyticsHandler := &analytics.Handler{Svc: &analytics.Service{
		Ledger:       ledger,
		Catalog:      products,
		R:            deps.Redis,
		TTL:          cfg.ReportCacheTTL,
		Location:     cfg.ReportTimezone,
		DefaultRange: 7,
	}}

	queueAdmin, closeAdmin, err := deps.queueAdmin(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise queue admin")
	}
	defer closeAdmin()

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL, Logger: logger}

	limiter, err := ratelimit.New(cfg.RateLimit, deps.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	writeLimit := ratelimit.Handler{
		Limiter:  limiter,
		SkipSafe: true,
		OnError:  func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{
		Logger: logger,
		Skip: func(r *http.Request) bool {
			return r.URL.Path == "/health/live" || r.URL.Path == "/metrics"
		},
	}.Middleware)
	r.Use(security.Headers{Enable: cfg.Obs.SecureHeaders, EnableHSTS: cfg.Obs.HSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"Idempotent-Replay", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{Probes: deps.probes(cfg)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(writeLimit.Middleware)

		v.Route("/products", catalogHandler.Routes)

		v.Route("/registers", func(reg chi.Router) {
			registerHandler.Routes(reg)
			reg.With(idem.Middleware).Post("/{id}/checkout", checkoutHandler.Checkout)
		})

		v.Get("/receipts/last", checkoutHandler.LastReceipt)

		v.Route("/reports", analyticsHandler.Routes)

		if queueAdmin != nil {
			v.Route("/admin/queues", queueAdmin.Routes)
		}
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().
		Str("addr", srv.Addr).
		Str("storage", cfg.StorageDriver).
		Str("receipt_slot", cfg.ReceiptSlot).
		Str("sales_recording", cfg.SalesRecording).
		Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
