// Package shard provides hash-based shard routing for index engines. Each
// shard owns an independent indexer.Engine instance backed by its own data
// directory.
package shard

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/twmb/murmur3"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
)

// Router maps shard IDs to dedicated indexer.Engine instances. The engine set
// is fixed at construction.
type Router struct {
	engines []*indexer.Engine
	logger  *slog.Logger
}

// NewRouter creates cfg.NumShards engines, each in its own sub-directory
// under cfg.DataDir.
func NewRouter(cfg config.IndexerConfig) (*Router, error) {
	if cfg.NumShards < 1 {
		return nil, fmt.Errorf("shard router needs at least one shard, got %d", cfg.NumShards)
	}
	r := &Router{
		engines: make([]*indexer.Engine, 0, cfg.NumShards),
		logger:  slog.Default().With("component", "shard-router"),
	}
	for i := 0; i < cfg.NumShards; i++ {
		shardCfg := cfg
		shardCfg.DataDir = filepath.Join(cfg.DataDir, fmt.Sprintf("shard-%d", i))
		engine, err := indexer.NewEngine(shardCfg)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		r.engines = append(r.engines, engine)
		r.logger.Info("shard engine initialized",
			"shard_id", i,
			"data_dir", shardCfg.DataDir,
		)
	}
	r.logger.Info("shard router ready", "num_shards", cfg.NumShards)
	return r, nil
}

// ShardFor hashes entity type and id onto a shard.
func ShardFor(entity string, id []byte, numShards int) int {
	if numShards <= 1 {
		return 0
	}
	h := murmur3.New32()
	h.Write([]byte(entity))
	h.Write([]byte{0})
	h.Write(id)
	return int(h.Sum32() % uint32(numShards))
}

// ShardFor returns the shard that owns entity/id.
func (r *Router) ShardFor(entity string, id []byte) int {
	return ShardFor(entity, id, len(r.engines))
}

// Route returns the Engine responsible for the given shard ID.
func (r *Router) Route(shardID int) (*indexer.Engine, error) {
	if shardID < 0 || shardID >= len(r.engines) {
		return nil, apperrors.Newf(apperrors.ErrUnknownShard,
			"shard %d (valid range: 0-%d)", shardID, len(r.engines)-1)
	}
	return r.engines[shardID], nil
}

// Engines returns the shard engines ordered by shard ID.
func (r *Router) Engines() []*indexer.Engine {
	out := make([]*indexer.Engine, len(r.engines))
	copy(out, r.engines)
	return out
}

func (r *Router) NumShards() int {
	return len(r.engines)
}

// CommitAll commits every shard engine, returning the first error.
func (r *Router) CommitAll() error {
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Commit(); err != nil {
			r.logger.Error("commit failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close commits and closes every shard engine.
func (r *Router) Close() error {
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
