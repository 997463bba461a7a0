package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

const validYAML = `
database:
  host: localhost
  name: enrichment
redis:
  address: localhost:6379
providers:
  - id: hunter
    base_url: https://api.hunter.io
    active: true
    operations:
      - find_email
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8075", cfg.Server.Address)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "enrichment", cfg.Redis.Prefix)
	assert.Equal(t, DefaultWorkerConcurrency, cfg.Workers.Concurrency)
	assert.Equal(t, DefaultPersistEvery, cfg.Workers.PersistEvery)
	assert.Equal(t, DefaultMaxBatchSize, cfg.Workers.MaxBatchSize)

	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, 5, cfg.Providers[0].RateLimit.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Providers[0].RateLimit.Burst)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENRICHMENT_PORT", "9000")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("WORKER_CONCURRENCY", "12")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 12, cfg.Workers.Concurrency)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing database host",
			yaml: `
redis:
  address: localhost:6379
providers:
  - id: hunter
    base_url: https://api.hunter.io
`,
		},
		{
			name: "duplicate provider ids",
			yaml: `
database:
  host: localhost
  name: enrichment
redis:
  address: localhost:6379
providers:
  - id: hunter
    base_url: https://api.hunter.io
  - id: hunter
    base_url: https://api.hunter.io
`,
		},
		{
			name: "unknown operation",
			yaml: `
database:
  host: localhost
  name: enrichment
redis:
  address: localhost:6379
providers:
  - id: hunter
    base_url: https://api.hunter.io
    operations:
      - teleport
`,
		},
		{
			name: "no providers",
			yaml: `
database:
  host: localhost
  name: enrichment
redis:
  address: localhost:6379
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestValidateOperations(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.True(t, cfg.Providers[0].Supports(domain.OpFindEmail))
	assert.False(t, cfg.Providers[0].Supports(domain.OpBulkEnrich))
}
