package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"plaza-billing/internal/audit"
	"plaza-billing/internal/auth"
	billapp "plaza-billing/internal/billing/application"
	billing "plaza-billing/internal/billing/domain"
	billmemory "plaza-billing/internal/billing/infrastructure/memory"
	billpg "plaza-billing/internal/billing/infrastructure/postgres"
	billhttp "plaza-billing/internal/billing/interfaces/http"
	"plaza-billing/internal/directory"
	dirmemory "plaza-billing/internal/directory/infrastructure/memory"
	dirpg "plaza-billing/internal/directory/infrastructure/postgres"
	invoiceapp "plaza-billing/internal/invoice/application"
	invoicememory "plaza-billing/internal/invoice/infrastructure/memory"
	invoicepg "plaza-billing/internal/invoice/infrastructure/postgres"
	obligationapp "plaza-billing/internal/obligations/application"
	obligations "plaza-billing/internal/obligations/domain"
	obligationmemory "plaza-billing/internal/obligations/infrastructure/memory"
	obligationpg "plaza-billing/internal/obligations/infrastructure/postgres"
	obligationhttp "plaza-billing/internal/obligations/interfaces/http"
	"plaza-billing/internal/obligations/notify"
	"plaza-billing/internal/observability/metrics"
	applogger "plaza-billing/internal/platform/logger"
	"plaza-billing/internal/platform/migration"
)

func main() {
	cfg := loadConfig()

	logCfg := applogger.ForEnvironment(cfg.Env)
	if cfg.LogLevel != "" {
		logCfg.Level = cfg.LogLevel
	}
	logger, err := applogger.New(logCfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	policy, err := billapp.LoadPolicy()
	if err != nil {
		logger.Fatal("billing policy error", zap.Error(err))
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db open error", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatal("db ping error", zap.Error(err))
		}
		if cfg.MigrateOnStart {
			migrator, err := migration.New(db, cfg.MigrationsPath, logger)
			if err != nil {
				logger.Fatal("migration init error", zap.Error(err))
			}
			if err := migrator.Up(); err != nil {
				logger.Fatal("migration error", zap.Error(err))
			}
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	metrics.Init(db, logger)
	store := buildStores(db, logger)

	billService, err := billapp.NewService(store.bills, policy, billapp.SystemClock{}, logger)
	if err != nil {
		logger.Fatal("bill service error", zap.Error(err))
	}
	invoiceService, err := invoiceapp.NewService(billService, store.resolver, store.info, store.exports, logger)
	if err != nil {
		logger.Fatal("invoice service error", zap.Error(err))
	}
	obligationService, err := obligationapp.NewService(store.configs, obligationapp.SystemClock{}, obligationapp.WithDefaultGraceDays(policy.GraceDays))
	if err != nil {
		logger.Fatal("obligation service error", zap.Error(err))
	}
	generator, err := obligationapp.NewGenerator(store.configs, store.readings, logger)
	if err != nil {
		logger.Fatal("generator error", zap.Error(err))
	}

	billHandler, err := billhttp.NewHandler(billService, invoiceService, store.audit)
	if err != nil {
		logger.Fatal("bill handler error", zap.Error(err))
	}
	obligationHandler, err := obligationhttp.NewHandler(obligationService, store.audit)
	if err != nil {
		logger.Fatal("obligation handler error", zap.Error(err))
	}
	var reminders *obligationapp.ReminderDispatcher
	if cfg.ReminderWebhookURL != "" {
		reminders, err = obligationapp.NewReminderDispatcher(store.configs, notify.NewWebhookNotifier(cfg.ReminderWebhookURL, cfg.ReminderTimeout), policy.Currency, logger)
		if err != nil {
			logger.Fatal("reminder dispatcher error", zap.Error(err))
		}
	}
	generateHandler, err := obligationhttp.NewGenerateHandler(generator, reminders, obligationapp.SystemClock{}, store.audit, logger)
	if err != nil {
		logger.Fatal("generate handler error", zap.Error(err))
	}
	readingsHandler, err := obligationhttp.NewReadingsHandler(store.readings, store.audit)
	if err != nil {
		logger.Fatal("readings handler error", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/bills", billHandler)
	mux.Handle("/api/v1/bills/", billHandler)
	mux.Handle("/api/v1/obligations", obligationHandler)
	mux.Handle("/api/v1/obligations/", obligationHandler)
	mux.Handle(auth.GeneratePath, generateHandler)
	mux.Handle("/api/v1/meters/", readingsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), []byte(cfg.CronSecret), auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", zap.Error(err))
		}
	}()

	logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("postgres", db != nil))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server error", zap.Error(err))
	}
	logger.Info("http server stopped")
}

type stores struct {
	bills    billing.Repository
	configs  obligations.Repository
	readings interface {
		obligations.ReadingSource
		obligations.ReadingRecorder
	}
	resolver directory.Resolver
	info     directory.BusinessInfoSource
	exports  invoiceapp.ExportRecorder
	audit    audit.Logger
}

func buildStores(db *sql.DB, logger *zap.Logger) stores {
	if db != nil {
		dir := dirpg.NewDirectory(db)
		return stores{
			bills:    billpg.NewBillRepository(db),
			configs:  obligationpg.NewConfigRepository(db),
			readings: obligationpg.NewReadingSource(db),
			resolver: dir,
			info:     dir,
			exports:  invoicepg.NewExportRepository(db),
			audit:    audit.NewRepository(db),
		}
	}
	bills := billmemory.NewBillRepository()
	dir := dirmemory.NewDirectory()
	return stores{
		bills:    bills,
		configs:  obligationmemory.NewConfigRepository(bills),
		readings: obligationmemory.NewReadingStore(),
		resolver: dir,
		info:     dir,
		exports:  invoicememory.NewExportLog(),
		audit:    audit.NewZapLogger(logger),
	}
}

type config struct {
	Env             string
	LogLevel        string
	DatabaseURL     string
	HTTPAddr        string
	JWTSecret       string
	CronSecret      string
	MigrateOnStart  bool
	MigrationsPath  string
	ShutdownTimeout time.Duration

	ReminderWebhookURL string
	ReminderTimeout    time.Duration
}

func loadConfig() config {
	cfg := config{
		Env:             getenvDefault("APP_ENV", "development"),
		LogLevel:        getenvDefault("LOG_LEVEL", ""),
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		CronSecret:      getenvDefault("CRON_SECRET", ""),
		MigrateOnStart:  getenvBoolDefault("MIGRATE_ON_START", false),
		MigrationsPath:  getenvDefault("MIGRATIONS_PATH", "migrations"),
		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		ReminderWebhookURL: getenvDefault("REMINDER_WEBHOOK_URL", ""),
		ReminderTimeout:    getenvDuration("REMINDER_WEBHOOK_TIMEOUT", 10*time.Second),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r.WithContext(applogger.WithContext(r.Context(), logger)))
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", audit.ClientIP(r)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
