// cmd/notification-dispatcher/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-dispatch/internal/audit"
	awsclient "notification-dispatch/internal/common/aws"
	"notification-dispatch/internal/common/camunda"
	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/database"
	httpclient "notification-dispatch/internal/common/http"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/observability"
	"notification-dispatch/internal/events"
	"notification-dispatch/internal/ingest/kafka"
	"notification-dispatch/internal/notifications/catalog"
	"notification-dispatch/internal/notifications/delivery"
	"notification-dispatch/internal/notifications/dispatch"
	"notification-dispatch/internal/notifications/templates"
	"notification-dispatch/internal/notifications/vault"
	"notification-dispatch/internal/store"
	jsn "notification-dispatch/internal/workers/notifications/job-status-notify"
	ts "notification-dispatch/internal/workers/notifications/template-send"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification dispatcher...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	st := store.New(pg.DB)
	applied, err := st.Migrate(ctx)
	if err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("Schema up to date", zap.Strings("applied", applied))

	// --- Init Redis with retry ---
	pollTimeout := config.GetDuration(cfg.Notifications.Delivery.PollTimeout)
	redis := database.NewRedis(cfg.Database.Redis, pollTimeout)
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch audit mirror ---
	senderCfg := delivery.SenderConfig{
		SendTimeout:   config.GetDuration(cfg.Notifications.Delivery.SendTimeout),
		Observability: obs,
	}
	if cfg.Notifications.Audit.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		senderCfg.Audit = audit.NewIndexer(esClient.Client, cfg.Notifications.Audit.Index, log)
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Notifications.Audit.Index))
	}

	// --- Channel catalog and templates ---
	deps := catalog.Dependencies{
		HTTP:              httpclient.NewClient(config.GetDuration(cfg.Integrations.HTTP.Timeout)),
		TelegramServerURL: cfg.Integrations.Telegram.ServerURL,
		RatePerSecond:     cfg.Integrations.RateLimit.PerSecond,
		Burst:             cfg.Integrations.RateLimit.Burst,
	}
	if awsCfg, err := awsclient.LoadConfig(ctx, cfg.Integrations.AWS.Region); err != nil {
		zapLog.Warn("AWS config unavailable, ses and sns channels will fail to send", zap.Error(err))
	} else {
		deps.SES = awsclient.NewSESClient(awsCfg)
		deps.SNS = awsclient.NewSNSClient(awsCfg)
	}
	cat := catalog.New(deps)

	v, err := vault.New(cfg.Notifications.SecretKey)
	if err != nil {
		zapLog.Fatal("vault init failed", zap.Error(err))
	}
	manager := templates.NewManager(st, cat, v, log)
	zapLog.Info("Channel catalog ready", zap.Strings("channels", cat.Types()))

	// --- Dispatch and delivery ---
	queue := delivery.NewRedisQueue(redis.Client, cfg.Notifications.Delivery.QueueKey, log)
	trigger := dispatch.NewTrigger(manager, st, queue, st.BeginUnit, log)
	factory := events.NewFactory(st, cfg.Notifications.UIBaseURL)

	sender := delivery.NewSender(st, st, manager, log, senderCfg)
	consumer := delivery.NewConsumer(queue, sender, cfg.Notifications.Delivery.Concurrency, pollTimeout, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()

	sweeper := delivery.NewSweeper(
		cfg.Notifications.Delivery.SweepSchedule,
		config.GetDuration(cfg.Notifications.Delivery.StaleAfter),
		st, queue, queue, log,
	)
	if err := sweeper.Start(); err != nil {
		zapLog.Fatal("sweeper start failed", zap.Error(err))
	}

	// --- Ingress: Zeebe workers ---
	var zeebe *camunda.Client
	var jobWorkers []*camunda.Worker
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}

		if config.IsWorkerEnabled(cfg, jsn.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, jsn.TaskType)
			handler := jsn.NewHandler(jsn.LoadConfig(wcfg), factory, trigger, log)
			jobWorkers = append(jobWorkers, camunda.NewWorker(zeebe.GetClient(), jsn.TaskType, wcfg, handler, log))
		}
		if config.IsWorkerEnabled(cfg, ts.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, ts.TaskType)
			handler := ts.NewHandler(ts.LoadConfig(wcfg), manager, st, queue, log)
			jobWorkers = append(jobWorkers, camunda.NewWorker(zeebe.GetClient(), ts.TaskType, wcfg, handler, log))
		}
		zapLog.Info("Zeebe workers registered", zap.Int("count", len(jobWorkers)))
	}

	// --- Ingress: Kafka job-status stream ---
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		kafkaConsumer = kafka.NewConsumer(kafka.NewReader(cfg.Kafka), factory, trigger, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := kafkaConsumer.Run(ctx); err != nil {
				zapLog.Error("Kafka consumer stopped", zap.Error(err))
			}
		}()
		zapLog.Info("Kafka consumer started", zap.String("topic", cfg.Kafka.Topic))
	}

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           healthMux(pg, redis),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping dispatcher...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, w := range jobWorkers {
		w.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	cancel()
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Close(); err != nil {
			zapLog.Error("Error closing Kafka reader", zap.Error(err))
		}
	}
	sweeper.Stop()
	wg.Wait()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}

	zapLog.Info("Notification dispatcher stopped gracefully")
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthMux serves liveness, readiness against the backing stores, and Prometheus metrics.
func healthMux(deps ...pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, d := range deps {
			if err := d.Ping(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
