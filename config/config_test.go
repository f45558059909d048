package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.MQ.MaxReconsumeTimes)
	assert.Equal(t, "document_chunk", cfg.Milvus.CollectionName)
	assert.Equal(t, 1024, cfg.Embedding.Dimension)
	assert.Equal(t, 10, cfg.Embedding.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Sweep.PendingMaxAge)
	assert.Equal(t, 30*time.Minute, cfg.Sweep.AlertProcessing)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.MQ.MaxReconsumeTimes = 8
	cfg.Embedding.Dimension = 768
	applyDefaults(cfg)

	assert.Equal(t, 8, cfg.MQ.MaxReconsumeTimes)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
}
