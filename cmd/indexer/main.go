package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/backend"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/remote"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/workspace"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/rpc"
)

func main() {
	configPath := flag.String("config", "configs/indexrelay.yaml", "path to config file")
	noKafka := flag.Bool("no-kafka", false, "do not consume the Kafka topic")
	batch := flag.Bool("batch", false, "apply every message in batch mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg, !*noKafka, *batch); err != nil {
		slog.Error("index node failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, consume, batch bool) error {
	slog.Info("starting index node", "num_shards", cfg.Indexer.NumShards, "data_dir", cfg.Indexer.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var deps []func(*health.Monitor)

	router, err := shard.NewRouter(cfg.Indexer)
	if err != nil {
		return fmt.Errorf("creating shard router: %w", err)
	}
	defer func() {
		if err := router.Close(); err != nil {
			slog.Error("closing shards failed", "error", err)
		}
	}()

	backendOpts := []backend.Option{backend.WithMetrics(m)}
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		deps = append(deps, func(hm *health.Monitor) { hm.AddDependency("redis", rdb.Ping, true) })
		backendOpts = append(backendOpts, backend.WithDistributedLocks(func(shardID int) *workspace.DistributedLock {
			key := fmt.Sprintf("%sshard-%d", cfg.Redis.LockPrefix, shardID)
			return workspace.NewDistributedLock(rdb, key, cfg.Redis.LockTTL, cfg.Redis.LockPollWait)
		}))
		slog.Info("distributed shard locks enabled", "addr", cfg.Redis.Addr)
	}

	j := journal.New(nil, m)
	if cfg.Postgres.Host != "" {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		j = journal.New(pg.DB, m)
		if err := j.EnsureSchema(ctx); err != nil {
			return err
		}
		deps = append(deps, func(hm *health.Monitor) { hm.AddDependency("postgres", pg.Ping, false) })
		slog.Info("apply journal enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	be := backend.New(router, cfg.Indexer, backendOpts...)
	node := remote.NewNode(be, j, m, remote.WithBatch(batch))

	workspaces := be.Workspaces()
	shards := make([]health.Shard, len(workspaces))
	for i, ws := range workspaces {
		shards[i] = ws
	}
	monitor := health.NewMonitor(shards, health.WithMaxSegments(cfg.Indexer.MaxSegmentsBeforeMerge))
	for _, add := range deps {
		add(monitor)
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, monitor)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	if cfg.RPC.ListenAddr != "" {
		srv := rpc.NewServer(cfg.RPC.MaxFrameSize)
		srv.Register(remote.MethodApply, node.RPCHandler())
		go func() {
			if err := srv.Serve(cfg.RPC.ListenAddr); err != nil {
				slog.Error("rpc server error", "error", err)
				stop()
			}
		}()
		defer srv.Stop()
	}

	if cfg.Indexer.FlushInterval > 0 {
		be.StartCommitLoops(ctx, cfg.Indexer.FlushInterval)
	}

	if consume {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topic, node.KafkaHandler())
		slog.Info("index node ready, consuming from kafka",
			"topic", cfg.Kafka.Topic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	} else {
		slog.Info("index node ready")
		<-ctx.Done()
	}

	slog.Info("committing all shards before shutdown")
	if err := router.CommitAll(); err != nil {
		slog.Error("final commit failed", "error", err)
	}
	slog.Info("index node stopped")
	return nil
}
