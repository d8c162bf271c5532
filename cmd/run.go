package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/bookmarkd/bookmarkd/internal/build"
	"github.com/bookmarkd/bookmarkd/internal/deferred"
	"github.com/bookmarkd/bookmarkd/internal/notifications"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/server"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
	"github.com/bookmarkd/bookmarkd/pkg/storage/memory"
	"github.com/bookmarkd/bookmarkd/pkg/storage/mysql"
	"github.com/bookmarkd/bookmarkd/pkg/storage/postgres"
	"github.com/bookmarkd/bookmarkd/pkg/storage/sqlcommon"
	"github.com/bookmarkd/bookmarkd/pkg/storage/sqlite"
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bookmarkd server",
		Long:  "Run the bookmarkd server.",
		RunE:  run,
		Args:  cobra.NoArgs,
	}

	bindRunFlags(cmd)

	return cmd
}

// ReadConfig returns the server configuration based on the values provided in
// the server's 'config.yaml' file. The 'config.yaml' file is loaded from
// '/etc/bookmarkd', '$HOME/.bookmarkd', or the current working directory. If
// no configuration file is present, the default values are returned.
func ReadConfig() (*Config, error) {
	config := DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load server config: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server config: %w", err)
	}

	return config, nil
}

func run(_ *cobra.Command, _ []string) error {
	config, err := ReadConfig()
	if err != nil {
		return err
	}

	if err := config.Verify(); err != nil {
		return err
	}

	log := logger.MustNewLogger(config.Log.Format, config.Log.Level)

	serverCtx := &ServerContext{Logger: log}
	return serverCtx.Run(context.Background(), config)
}

type ServerContext struct {
	Logger logger.Logger
}

func (s *ServerContext) datastore(config *Config) (storage.FolderDatastore, error) {
	opts := []sqlcommon.Option{
		sqlcommon.WithLogger(s.Logger),
		sqlcommon.WithMaxOpenConns(config.Datastore.MaxOpenConns),
		sqlcommon.WithMaxIdleConns(config.Datastore.MaxIdleConns),
		sqlcommon.WithConnMaxIdleTime(config.Datastore.ConnMaxIdleTime),
		sqlcommon.WithConnMaxLifetime(config.Datastore.ConnMaxLifetime),
	}

	switch config.Datastore.Engine {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(config.Datastore.URI, opts...)
	case "postgres":
		return postgres.New(config.Datastore.URI, opts...)
	case "mysql":
		return mysql.New(config.Datastore.URI, opts...)
	default:
		return nil, fmt.Errorf("storage engine '%s' is unsupported", config.Datastore.Engine)
	}
}

func queueMode(mode string) deferred.Mode {
	switch mode {
	case "sync":
		return deferred.ModeSync
	case "disabled":
		return deferred.ModeDisabled
	default:
		return deferred.ModeAsync
	}
}

// Run starts the API and metrics servers and blocks until the process is
// signalled to stop.
func (s *ServerContext) Run(ctx context.Context, config *Config) error {
	ds, err := s.datastore(config)
	if err != nil {
		return fmt.Errorf("initialize datastore: %w", err)
	}
	defer ds.Close()

	s.Logger.Info("starting bookmarkd",
		zap.String("version", build.Version),
		zap.String("datastore", config.Datastore.Engine),
	)

	queue := deferred.NewQueue(s.Logger,
		deferred.WithMode(queueMode(config.Deferred.Mode)),
		deferred.WithWorkers(config.Deferred.Workers),
	)
	defer queue.Close()

	notifier := notifications.NewLogNotifier(s.Logger)
	api := server.New(ds, queue, notifier, s.Logger)

	mux := http.NewServeMux()
	mux.Handle("/", api.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := otelhttp.NewHandler(cors.New(cors.Options{
		AllowedOrigins: config.HTTP.CORSAllowedOrigins,
		AllowedHeaders: config.HTTP.CORSAllowedHeaders,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
	}).Handler(mux), "bookmarkd")

	httpServer := &http.Server{
		Addr:    config.HTTP.Addr,
		Handler: handler,
	}

	go func() {
		s.Logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Fatal("HTTP server closed unexpectedly", zap.Error(err))
		}
	}()

	var metricsServer *http.Server
	if config.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: config.Metrics.Addr, Handler: metricsMux}

		go func() {
			s.Logger.Info("metrics server listening", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Fatal("metrics server closed unexpectedly", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	s.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.Logger.Error("HTTP server shutdown", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			s.Logger.Error("metrics server shutdown", zap.Error(err))
		}
	}

	return nil
}
