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

	"prepaid-meter/internal/audit"
	"prepaid-meter/internal/auth"
	"prepaid-meter/internal/meter/application"
	"prepaid-meter/internal/meter/application/eventbus"
	meter "prepaid-meter/internal/meter/domain"
	"prepaid-meter/internal/meter/infrastructure/memory"
	meterpostgres "prepaid-meter/internal/meter/infrastructure/postgres"
	metersqlite "prepaid-meter/internal/meter/infrastructure/sqlite"
	meterhttp "prepaid-meter/internal/meter/interfaces/http"
	"prepaid-meter/internal/meter/notify"
	"prepaid-meter/internal/observability/metrics"
	tariff "prepaid-meter/internal/tariff/domain"
	tarifffile "prepaid-meter/internal/tariff/infrastructure/file"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	store, db, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatalf("store open error: %v", err)
	}
	defer closeStore()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatalf("timezone %q error: %v", cfg.Timezone, err)
	}

	table := tariff.DefaultTable()
	if cfg.TariffFile != "" {
		loaded, err := tarifffile.Load(cfg.TariffFile)
		if err != nil {
			logger.Fatalf("tariff file error: %v", err)
		}
		table = loaded
	}

	bus := eventbus.New()
	service, err := application.NewService(store,
		application.WithPublisher(bus),
		application.WithLogger(logger),
		application.WithLocation(location),
		application.WithTariffTable(table),
		application.WithSeriesLimit(cfg.SeriesLimit),
	)
	if err != nil {
		logger.Fatalf("meter service error: %v", err)
	}
	if err := service.Load(context.Background()); err != nil {
		logger.Fatalf("meter state load error: %v", err)
	}

	metrics.Init(service, logger)

	broker := meterhttp.NewSSEBroker()
	eventbus.Subscribe(bus, "sse", broker.HandleLedgerChanged)
	eventbus.Subscribe(bus, "log", func(_ context.Context, event application.LedgerChanged) error {
		logger.Printf("ledger %s %s id=%s balance=%.2f", event.Kind, event.Op, event.EntryID, event.Balance)
		return nil
	})

	if cfg.LowCreditWebhookURL != "" && cfg.LowCreditThreshold > 0 {
		channel, err := notify.NewWebhookChannel(cfg.LowCreditWebhookURL)
		if err != nil {
			logger.Fatalf("low credit webhook error: %v", err)
		}
		notifier, err := notify.NewLowCreditNotifier(cfg.LowCreditThreshold, channel,
			notify.WithLogger(logger),
			notify.WithDaysEstimator(func() (float64, bool) {
				d := service.Dashboard()
				return d.DaysRemaining, d.DaysRemainingAvailable
			}),
		)
		if err != nil {
			logger.Fatalf("low credit notifier error: %v", err)
		}
		defer notifier.Close()
		eventbus.Subscribe(bus, "low-credit", notifier.HandleLedgerChanged)
	}

	if cfg.TariffFile != "" {
		watcher, err := tarifffile.NewWatcher(cfg.TariffFile, service, logger)
		if err != nil {
			logger.Fatalf("tariff watcher error: %v", err)
		}
		if err := watcher.Start(); err != nil {
			logger.Printf("tariff watcher disabled: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	var auditor audit.Logger
	if db != nil {
		auditor = audit.NewRepository(db)
	} else {
		auditor, err = audit.NewLogWriter(logger)
		if err != nil {
			logger.Fatalf("audit writer error: %v", err)
		}
	}

	meterHandler, err := meterhttp.NewHandler(service, cfg.Currency, logger, meterhttp.WithAuditLogger(auditor))
	if err != nil {
		logger.Fatalf("meter handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	if !authMiddleware.Enabled() {
		logger.Printf("auth disabled: AUTH_JWT_SECRET not set")
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/stream", meterhttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/", meterHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s (store=%s)", cfg.HTTPAddr, cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("http server error: %v", err)
	}
	logger.Printf("shutdown complete")
}

type config struct {
	HTTPAddr            string
	Store               string
	DatabaseURL         string
	SQLitePath          string
	TariffFile          string
	Timezone            string
	Currency            string
	JWTSecret           string
	LowCreditThreshold  float64
	LowCreditWebhookURL string
	SeriesLimit         int
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		Store:               getenvDefault("STORE", "sqlite"),
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		SQLitePath:          getenvDefault("SQLITE_PATH", "meter.db"),
		TariffFile:          getenvDefault("TARIFF_FILE", ""),
		Timezone:            getenvDefault("TIMEZONE", "UTC"),
		Currency:            getenvDefault("CURRENCY", "FCFA"),
		JWTSecret:           getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		LowCreditThreshold:  getenvFloatDefault("LOW_CREDIT_THRESHOLD", 10),
		LowCreditWebhookURL: getenvDefault("LOW_CREDIT_WEBHOOK_URL", ""),
		SeriesLimit:         getenvIntDefault("SERIES_LIMIT", application.DefaultSeriesLimit),
	}
	switch cfg.Store {
	case "memory", "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			log.Fatal("DATABASE_URL or PG_DSN is required for STORE=postgres")
		}
	default:
		log.Fatalf("unknown STORE %q (memory, sqlite, postgres)", cfg.Store)
	}
	return cfg
}

// openStore returns the ledger store and, for postgres, the shared *sql.DB.
func openStore(cfg config, logger *log.Logger) (meter.Store, *sql.DB, func(), error) {
	switch cfg.Store {
	case "memory":
		logger.Printf("store: memory (state is lost on restart)")
		return memory.NewStore(), nil, func() {}, nil
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		store := meterpostgres.NewStore(db)
		if err := store.EnsureSchema(context.Background()); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return store, db, func() { _ = db.Close() }, nil
	default:
		store, err := metersqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Printf("store: sqlite %s", cfg.SQLitePath)
		return store, nil, func() { _ = store.Close() }, nil
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
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

// Flush keeps the SSE stream working behind the logging middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
