package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/MJ-02/BillSplitter/internal/config"
	"github.com/MJ-02/BillSplitter/internal/httpapi"
	"github.com/MJ-02/BillSplitter/internal/messaging"
	"github.com/MJ-02/BillSplitter/internal/middleware"
	"github.com/MJ-02/BillSplitter/internal/objectstore"
	"github.com/MJ-02/BillSplitter/internal/receipt"
	"github.com/MJ-02/BillSplitter/internal/service"
	"github.com/MJ-02/BillSplitter/internal/storage"
	"github.com/MJ-02/BillSplitter/internal/storage/postgres"
	"github.com/MJ-02/BillSplitter/internal/storage/sqlite"
	"github.com/MJ-02/BillSplitter/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	extractor, err := receipt.NewTextExtractor(receipt.ExtractorConfig{
		Engine: cfg.OCREngine,
		URL:    cfg.OCRURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OCR: %w", err)
	}
	parser := receipt.NewLLMParser(receipt.LLMConfig{
		BaseURL: cfg.LLMAPIURL,
		Model:   cfg.LLMModel,
		APIKey:  cfg.LLMAPIKey,
	})
	slog.Info("Receipt pipeline configured", "ocr_engine", cfg.OCREngine, "llm_model", cfg.LLMModel)

	sender := messaging.NewTwilioSender(messaging.TwilioConfig{
		AccountSID:          cfg.TwilioSID,
		AuthToken:           cfg.TwilioAuthToken,
		FromNumber:          cfg.TwilioPhoneNumber,
		MessagingServiceSID: cfg.TwilioMessagingServiceSID,
		Timeout:             cfg.SMSTimeout,
		Concurrency:         cfg.SMSConcurrency,
	})
	if !cfg.TwilioConfigured() {
		slog.Warn("Twilio credentials not set; reminders will not be delivered")
	}

	images, fsImages, err := openImageStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize image store: %w", err)
	}

	api := httpapi.NewServer(
		service.NewUserService(store),
		service.NewOrderService(store, extractor, parser, images),
		service.NewSplitService(store),
		service.NewReminderService(store, sender),
	)

	mux := api.Routes()
	if fsImages != nil {
		mux.Handle(fsImages.Pattern(), fsImages.Handler())
	}
	handler := middleware.Logging(middleware.Metrics(middleware.CORS(mux)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", "postgres")
		return store, nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", "sqlite", "database", cfg.DBPath)
		return store, nil
	}
}

// openImageStore returns the configured image store, and the filesystem
// store separately when its files must be served by this process.
func openImageStore(cfg *config.Config) (receipt.ImageStore, *objectstore.FSStore, error) {
	switch cfg.ImageStore {
	case "oss":
		store, err := objectstore.NewOSSStore(objectstore.OSSConfig{
			Endpoint:        cfg.OSSEndpoint,
			AccessKeyID:     cfg.OSSAccessKeyID,
			AccessKeySecret: cfg.OSSAccessKeySecret,
			Bucket:          cfg.OSSBucket,
			PublicBaseURL:   cfg.OSSPublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Image store initialized", "kind", "oss", "bucket", cfg.OSSBucket)
		return store, nil, nil
	case "fs":
		store, err := objectstore.NewFSStore(cfg.ImageDir, cfg.ImageBaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Image store initialized", "kind", "fs", "dir", cfg.ImageDir)
		return store, store, nil
	default:
		slog.Warn("Image store disabled; receipt images are not kept")
		return nil, nil, nil
	}
}
