package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Indexer.NumShards)
	assert.Equal(t, "index-operations", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Postgres.Host)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
indexer:
  dataDir: /var/lib/indexrelay
  numShards: 4
  maxSegmentsBeforeMerge: 3
redis:
  lockTTL: 5s
`), 0o644)
	require.NoError(t, err)

	t.Setenv("IR_INDEXER_NUM_SHARDS", "8")
	t.Setenv("IR_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/indexrelay", cfg.Indexer.DataDir)
	assert.Equal(t, 8, cfg.Indexer.NumShards)
	assert.Equal(t, 3, cfg.Indexer.MaxSegmentsBeforeMerge)
	assert.Equal(t, 5*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(8), cfg.Indexer.BulkSegmentFactor)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indexer:\n  numShards: 0\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "numShards")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
