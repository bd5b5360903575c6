// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pump-advisor-workers/internal/common/camunda"
	"pump-advisor-workers/internal/common/config"
	"pump-advisor-workers/internal/common/database"
	"pump-advisor-workers/internal/common/genai"
	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/common/observability"
	"pump-advisor-workers/internal/engine"
	"pump-advisor-workers/pkg/catalog"

	sc "pump-advisor-workers/internal/workers/catalog/search-catalog"
	dna "pump-advisor-workers/internal/workers/conversation/decide-next-action"
	er "pump-advisor-workers/internal/workers/conversation/extract-requirements"
	lc "pump-advisor-workers/internal/workers/conversation/load-conversation"
	pr "pump-advisor-workers/internal/workers/conversation/phrase-response"
	sr "pump-advisor-workers/internal/workers/notification/send-recommendation"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         time.Duration(cfg.Camunda.RequestTimeout) * time.Millisecond,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Load Pump Catalog & Recommendation Engine ---
	cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.SchemaPath)
	if err != nil {
		zapLog.Fatal("catalog load failed", zap.Error(err), zap.String("path", cfg.Catalog.Path))
	}
	zapLog.Info("Pump catalog loaded",
		zap.String("version", cat.Version),
		zap.Int("pumps", len(cat.Pumps)),
		zap.String("region", cfg.Catalog.Region),
	)

	advisorEngine := engine.New(cat, cfg.Catalog.Region)

	// --- Init GenAI Client ---
	var aiClient *genai.Client
	if cfg.APIs.GenAI.BaseURL != "" {
		aiClient = genai.NewClient(
			cfg.APIs.GenAI.BaseURL,
			cfg.APIs.GenAI.APIKey,
			cfg.APIs.GenAI.Model,
			time.Duration(cfg.APIs.GenAI.Timeout)*time.Millisecond,
		)
		zapLog.Info("GenAI client initialized", zap.String("model", cfg.APIs.GenAI.Model))
	} else {
		zapLog.Warn("GenAI base URL not configured, LLM features disabled")
	}

	// --- Register Workers ---
	var activeWorkers []*camunda.Worker

	// 1. Conversation Workers (4)
	if cfg.Workers[lc.TaskType].Enabled {
		handler := lc.NewHandler(
			&lc.Config{
				Timeout:     time.Duration(cfg.Workers[lc.TaskType].Timeout) * time.Millisecond,
				CacheTTL:    5 * time.Minute,
				MaxMessages: 50,
			},
			pg.DB, redis.Client, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, lc.TaskType, cfg.Workers[lc.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[er.TaskType].Enabled {
		handler := er.NewHandler(
			&er.Config{
				Timeout:    time.Duration(cfg.Workers[er.TaskType].Timeout) * time.Millisecond,
				LLMTimeout: 8 * time.Second,
				LLMEnabled: aiClient != nil,
			},
			aiClient, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, er.TaskType, cfg.Workers[er.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[dna.TaskType].Enabled {
		handler := dna.NewHandler(
			&dna.Config{
				Region: cfg.Catalog.Region,
			},
			advisorEngine, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, dna.TaskType, cfg.Workers[dna.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[pr.TaskType].Enabled {
		handler := pr.NewHandler(
			&pr.Config{
				Timeout:    time.Duration(cfg.Workers[pr.TaskType].Timeout) * time.Millisecond,
				LLMTimeout: 5 * time.Second,
				LLMEnabled: aiClient != nil,
				MaxRetries: 1,
			},
			aiClient, cat, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, pr.TaskType, cfg.Workers[pr.TaskType], handler.Handle, zapLog))
	}

	// 2. Catalog Workers (1)
	if cfg.Workers[sc.TaskType].Enabled {
		handler := sc.NewHandler(
			&sc.Config{
				Timeout:   time.Duration(cfg.Workers[sc.TaskType].Timeout) * time.Millisecond,
				IndexName: cfg.Catalog.ESIndex,
				MaxHits:   10,
			},
			esClient.Client, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, sc.TaskType, cfg.Workers[sc.TaskType], handler.Handle, zapLog))
	}

	// 3. Notification Workers (1)
	if cfg.Workers[sr.TaskType].Enabled {
		handler, err := sr.NewHandler(
			&sr.Config{
				EmailEnabled: cfg.Notifications.Email.Enabled,
				SMSEnabled:   cfg.Notifications.SMS.Enabled,
				FromEmail:    cfg.Notifications.Email.FromEmail,
				AWSRegion:    cfg.Notifications.AWS.Region,
				Timeout:      time.Duration(cfg.Workers[sr.TaskType].Timeout) * time.Millisecond,
			},
			pg.DB, log,
		)
		if err != nil {
			zapLog.Fatal("failed to create send-recommendation handler", zap.Error(err))
		}
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, sr.TaskType, cfg.Workers[sr.TaskType], handler.Handle, zapLog))
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range activeWorkers {
		w.Close()
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc camunda.JobHandlerFunc, log *zap.Logger) *camunda.Worker {
	return camunda.NewWorker(client, camunda.WorkerOptions{
		TaskType:      taskType,
		MaxJobsActive: wcfg.MaxJobsActive,
		Timeout:       time.Duration(wcfg.Timeout) * time.Millisecond,
	}, handlerFunc, log)
}
