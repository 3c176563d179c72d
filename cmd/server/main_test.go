package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ratesYAML = `
employees:
  - id: emp-1
    name: Ana
    full_day_rate: 15000
companies:
  - id: acme
    name: Acme Ltd
    service_rate: 20000
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "staffing.db", cfg.DBPath)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "https://ops.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.CORSOrigins)
}

func TestLoadConfig_RejectsUnknownLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "pretty")

	_, err := LoadConfig()

	assert.Error(t, err)
}

func TestSeedRateCards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ratesYAML), 0o600))
	ctx := context.Background()

	for _, db := range []string{"memory", ":memory:"} {
		t.Run(db, func(t *testing.T) {
			backend, closeStore, err := openBackend(db)
			require.NoError(t, err)
			defer closeStore()

			require.NoError(t, seedRateCards(ctx, backend, path))

			emp, err := backend.EmployeeRateCard(ctx, "emp-1")
			require.NoError(t, err)
			require.NotNil(t, emp)
			assert.Equal(t, "Ana", emp.Name)
			companies, err := backend.ListCompanies(ctx)
			require.NoError(t, err)
			assert.Len(t, companies, 1)
		})
	}
}

func TestSeedRateCards_MissingFile(t *testing.T) {
	backend, closeStore, err := openBackend("memory")
	require.NoError(t, err)
	defer closeStore()

	assert.Error(t, seedRateCards(context.Background(), backend, filepath.Join(t.TempDir(), "nope.yaml")))
}
