package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	apiserver "github.com/stemflow/stemflow/internal/api_server"
	"github.com/stemflow/stemflow/internal/config"
	"github.com/stemflow/stemflow/internal/realtime"
	"github.com/stemflow/stemflow/internal/service"
	"github.com/stemflow/stemflow/internal/storage"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/tasks"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stemflow api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		cleanup := setupLogging(cfg)
		defer cleanup()

		zap.S().Info("Starting API service...")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if cfg.Database.Type != "pgsql" || cfg.Service.MigrationFolder != "" {
			if err := migrate(cmd.Context(), cfg, db, s); err != nil {
				zap.S().Fatalw("migrating data store", "error", err)
			}
		}

		publisher, err := newPublisher(cfg)
		if err != nil {
			zap.S().Fatalw("initializing task publisher", "error", err)
		}
		producer := tasks.NewProducer(publisher, tasks.WithTimeout(cfg.Queue.EnqueueTimeout))
		defer func() { _ = producer.Close() }()

		objects, err := newObjectStore(cfg)
		if err != nil {
			zap.S().Fatalw("initializing object storage", "error", err)
		}

		registry := realtime.NewRegistry()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				return err
			}
			return apiserver.New(cfg, s, listener, producer, objects, registry).Run(ctx)
		})

		g.Go(func() error {
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				return err
			}
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener, s).Run(ctx)
		})

		g.Go(func() error {
			return service.NewRetentionReaper(s, objects, cfg.Pipeline.FailedRetention, cfg.Pipeline.ReaperInterval).Run(ctx)
		})

		if err := g.Wait(); err != nil {
			zap.S().Errorw("service exited with error", "error", err)
			return err
		}
		return nil
	},
}

func newPublisher(cfg *config.Config) (tasks.Publisher, error) {
	switch cfg.Queue.Publisher {
	case "stdout":
		zap.S().Warn("tasks are written to stdout, no worker will receive them")
		return &tasks.StdoutPublisher{}, nil
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddress,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.EnqueueTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		return tasks.NewRedisPublisher(client, cfg.Queue.QueueKey, cfg.Queue.DedupTTL), nil
	}
}

func newObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	if !cfg.Storage.Enabled {
		zap.S().Info("object storage disabled, uploads are not verified")
		return storage.NoopStore{}, nil
	}
	return storage.NewMinioStore(
		storage.WithEndpoint(cfg.Storage.Endpoint),
		storage.WithBucket(cfg.Storage.Bucket),
		storage.WithCredentials(cfg.Storage.AccessKey, cfg.Storage.SecretKey),
		storage.WithRegion(cfg.Storage.Region),
		storage.WithSSL(cfg.Storage.UseSSL),
	)
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
