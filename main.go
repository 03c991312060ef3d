package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metersync/internal/auth"
	"metersync/internal/export"
	"metersync/internal/meterapi"
	"metersync/internal/notify"
	"metersync/internal/observability/metrics"
	"metersync/internal/pricing"
	"metersync/internal/reconcile/adapters/meterfeed"
	"metersync/internal/reconcile/application"
	reconcilepg "metersync/internal/reconcile/infrastructure/postgres"
	reconcilehttp "metersync/internal/reconcile/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	reconcileCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("reconcile config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()

	client, err := meterapi.NewClient(cfg.MeterBaseURL, cfg.MeterUsername, cfg.MeterPassword)
	if err != nil {
		logger.Fatalf("meter client error: %v", err)
	}
	feed, err := meterfeed.NewFeed(client, reconcileCfg.MaxHourly, logger, meterfeed.WithCallDelay(reconcileCfg.FetchDelay))
	if err != nil {
		logger.Fatalf("meter feed error: %v", err)
	}

	store := reconcilepg.NewStatisticsRepository(db)

	var priceProvider application.PriceProvider
	if cfg.UseTariffTable {
		priceProvider = pricing.NewTariffProvider(db)
	} else {
		static, err := pricing.NewStaticProvider(reconcileCfg.PriceTable())
		if err != nil {
			logger.Fatalf("price provider error: %v", err)
		}
		priceProvider = static
	}

	clock := application.SystemClock{}
	status := application.NewStatusRegistry(clock)
	service, err := application.NewService(reconcileCfg, feed, store, priceProvider, status, clock, logger)
	if err != nil {
		logger.Fatalf("reconcile service error: %v", err)
	}

	var notifier application.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL)
	}
	breaker := application.NewBreaker(reconcileCfg.Cooldown, clock)
	healer, err := application.NewHealer(reconcileCfg, service, store, breaker, status, notifier, clock, logger)
	if err != nil {
		logger.Fatalf("healer error: %v", err)
	}
	scheduler, err := application.NewScheduler(reconcileCfg, service, healer, clock, logger)
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}

	if err := client.Login(context.Background()); err != nil {
		logger.Printf("initial login failed, retrying on first pass: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go scheduler.Run(ctx)

	reportService, err := export.NewReportService(store)
	if err != nil {
		logger.Fatalf("report service error: %v", err)
	}
	handler, err := reconcilehttp.NewHandler(service, breaker, status, reportService, clock)
	if err != nil {
		logger.Fatalf("reconcile handler error: %v", err)
	}

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), "/healthz", "/metrics")

	mux := http.NewServeMux()
	mux.Handle("/api/v1/reconciliation/status", handler)
	mux.Handle("/api/v1/reconciliation/backfill", handler)
	mux.Handle("/api/v1/reconciliation/reports/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(err)
	}
	healer.Wait()
}

type config struct {
	DatabaseURL    string
	HTTPAddr       string
	MeterBaseURL   string
	MeterUsername  string
	MeterPassword  string
	WebhookURL     string
	JWTSecret      string
	UseTariffTable bool
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:    getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		MeterBaseURL:   getenvDefault("METER_BASE_URL", ""),
		MeterUsername:  getenvDefault("METER_USERNAME", ""),
		MeterPassword:  getenvDefault("METER_PASSWORD", ""),
		WebhookURL:     getenvDefault("ALERT_WEBHOOK_URL", ""),
		JWTSecret:      getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		UseTariffTable: os.Getenv("USE_TARIFF_TABLE") == "true",
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.MeterBaseURL == "" {
		log.Fatal("METER_BASE_URL is required")
	}
	if cfg.MeterUsername == "" || cfg.MeterPassword == "" {
		log.Fatal("METER_USERNAME and METER_PASSWORD are required")
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
