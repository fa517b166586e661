package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"dept-desk/internal/config"
	"dept-desk/internal/dbpool"
	"dept-desk/internal/email"
	"dept-desk/internal/hub"
	"dept-desk/internal/query"
	"dept-desk/internal/schema"
	"dept-desk/internal/server"
	"dept-desk/internal/storage"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 0. Load Config
	cfg := config.Load()

	slog.Info("Starting DeptDesk", "env", cfg.AppEnv)

	if cfg.MySQLDSN == "" {
		slog.Error("MYSQL_DSN not set")
		os.Exit(1)
	}

	ctx := context.Background()

	// 1. Establish the connection pool. This is the only fatal failure: a
	// service that cannot reach its database must not start.
	pool, err := dbpool.Open(ctx, dbpool.Config{
		DSN:            cfg.MySQLDSN,
		MinConns:       cfg.PoolMinConns,
		MaxConns:       cfg.PoolMaxConns,
		IdleTimeout:    cfg.PoolIdleTimeout,
		AcquireTimeout: cfg.PoolAcquireTimeout,
	})
	if err != nil {
		slog.Error("Failed to establish connection pool", "error", err)
		os.Exit(1)
	}

	// 2. Bootstrap schema
	if err := schema.Init(ctx, pool); err != nil {
		slog.Error("Schema bootstrap failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database Connected & Schema Initialized")

	// 3. Archive storage for purges
	var store storage.Provider
	if cfg.StorageType == "s3" {
		store = storage.NewS3Provider(newS3Client(cfg), cfg.S3Bucket)
		slog.Info("Using S3 archive storage", "bucket", cfg.S3Bucket)
	} else {
		store = storage.NewLocalProvider(cfg.LocalStoragePath)
		slog.Info("Using local archive storage", "path", cfg.LocalStoragePath)
	}

	// 4. Purge notifications
	var sender email.Sender
	if cfg.SMTPHost != "" {
		sender = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		sender = email.NewLogSender()
	}

	// 5. Hub + Handlers
	h := hub.NewHub()
	exec := query.NewExecutor(pool)
	handler := server.NewHandler(exec, pool, h, store, sender, cfg.AdminSecret, cfg.ArchiveCompression)

	// 6. Routes & Middleware
	mux := http.NewServeMux()
	mux.HandleFunc("/dashboard/stream", handler.HandleDashboard)
	mux.HandleFunc("/admin/purge", handler.HandlePurge)
	mux.HandleFunc("/", handler.HandleDepartment)

	finalHandler := server.CORS(cfg.AllowedOrigins, cfg.AppEnv)(mux)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: finalHandler,
	}

	coord := server.NewCoordinator(srv, pool, cfg.ShutdownGrace)

	go func() {
		slog.Info("DeptDesk listening", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// 7. Shutdown: SIGINT and SIGTERM both feed the coordinator. The exit
	// code is 0 for clean and forced shutdown alike.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			coord.Signal()
		case <-coord.Done():
			slog.Info("Shutdown complete")
			return
		}
	}
}

// newS3Client builds the S3 client from env credentials. Custom endpoints
// and path-style addressing cover non-AWS providers like MinIO/Contabo.
func newS3Client(cfg *config.Config) *s3.Client {
	opts := s3.Options{
		Region: cfg.AWSRegion,
		Credentials: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			}, nil
		}),
		UsePathStyle: cfg.S3PathStyle,
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
	}
	return s3.New(opts)
}
