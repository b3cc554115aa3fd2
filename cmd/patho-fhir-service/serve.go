package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/synaptica-ai/patho-fhir/pkg/common/config"
	"github.com/synaptica-ai/patho-fhir/pkg/common/database"
	"github.com/synaptica-ai/patho-fhir/pkg/common/kafka"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
	"github.com/synaptica-ai/patho-fhir/pkg/observability/metrics"
	"github.com/synaptica-ai/patho-fhir/pkg/processor"
	"github.com/synaptica-ai/patho-fhir/pkg/sink"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume report and specimen topics and deliver FHIR bundles",
		Run: func(cmd *cobra.Command, args []string) {
			serve()
		},
	}
}

func serve() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := buildEngine(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load mapping configuration")
	}

	bundleSink, closeSink := newSink(cfg)
	defer closeSink()

	var dlq processor.Publisher
	if cfg.KafkaRejectTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaRejectTopic)
		defer producer.Close()
		logger.Log.WithField("topic", producer.Topic()).Info("Publishing rejected records")
		dlq = producer
	}

	var rejections processor.RejectionStore
	if cfg.AuditEnabled {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to audit database")
		}
		defer database.ClosePostgres()
		repo := processor.NewRejectionRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate audit table")
		}
		rejections = repo
	}

	var status processor.StatusStore
	if cfg.StatusEnabled {
		client, err := database.GetRedis(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to status store")
		}
		defer database.CloseRedis()
		status = processor.NewRedisStatusStore(client, cfg.StatusTTL)
	}

	service := processor.NewService(engine, bundleSink, dlq, rejections, status)

	reports := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaReportTopic, cfg.KafkaGroupID)
	defer reports.Close()
	specimens := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaSpecimenTopic, cfg.KafkaGroupID)
	defer specimens.Close()

	var wg sync.WaitGroup
	for consumer, handler := range map[*kafka.Consumer]kafka.MessageHandler{
		reports:   service.ReportHandler(),
		specimens: service.SpecimenHandler(),
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log.WithField("topic", consumer.Topic()).Info("Consuming")
			if err := consumer.Consume(ctx, handler); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).WithField("topic", consumer.Topic()).Fatal("Consumer error")
			}
		}()
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	processor.NewHTTPHandler(service, cfg.MaxRequestBody).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
			"sink": cfg.Sink,
		}).Info("Pathology FHIR Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Pathology FHIR Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	wg.Wait()

	logger.Log.Info("Pathology FHIR Service stopped")
}

func newSink(cfg *config.Config) (processor.Sink, func()) {
	switch cfg.Sink {
	case "fhir":
		s, err := sink.NewFHIR(sink.FHIRConfig{
			BaseURL:      cfg.FHIRBaseURL,
			TokenURL:     cfg.FHIRTokenURL,
			ClientID:     cfg.FHIRClientID,
			ClientSecret: cfg.FHIRClientSecret,
			Scopes:       cfg.FHIRScopes,
			Timeout:      cfg.FHIRTimeout,
		})
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to configure FHIR sink")
		}
		return s, func() {}
	case "kafka":
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaBundleTopic)
		return sink.NewKafka(producer), func() { producer.Close() }
	default:
		logger.Log.WithField("sink", cfg.Sink).Fatal("Unknown sink")
		return nil, func() {}
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
