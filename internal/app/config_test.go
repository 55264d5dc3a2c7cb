package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoad(t *testing.T, files ...string) (*Config, error) {
	t.Helper()
	return loadConfig(aconfig.Config{
		EnvPrefix: "INVOICER",
		Files:     files,
		Args:      []string{},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("INVOICER_DATABASE_URL", "postgres://localhost/invoicer")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, StorageFS, cfg.Storage.Backend)
	assert.Equal(t, "invoices", cfg.Storage.Dir)
	assert.Equal(t, 30*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, "https://api.razorpay.com", cfg.Payment.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 5, cfg.Pipeline.MaxQuantity)
	assert.Zero(t, cfg.Schedule.Interval)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("INVOICER_DATABASE_URL", "postgres://localhost/invoicer")
	t.Setenv("INVOICER_STORAGE_BACKEND", "s3")
	t.Setenv("INVOICER_STORAGE_BUCKET", "bills")
	t.Setenv("INVOICER_PIPELINE_MAX_QUANTITY", "10")
	t.Setenv("INVOICER_SCHEDULE_INTERVAL", "5m")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, StorageS3, cfg.Storage.Backend)
	assert.Equal(t, "bills", cfg.Storage.Bucket)
	assert.Equal(t, 10, cfg.Pipeline.MaxQuantity)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.Interval)
}

func TestLoadConfig_YAML(t *testing.T) {
	name := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(name, []byte(`
database_url: postgres://yaml/invoicer
issuer:
  name: Kanpur Crafts
  contact: billing@example.com
pipeline:
  workers: 8
`), 0o600))

	cfg, err := testLoad(t, name)
	require.NoError(t, err)

	assert.Equal(t, "postgres://yaml/invoicer", cfg.DatabaseURL)
	assert.Equal(t, "Kanpur Crafts", cfg.Issuer.Name)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{
			"INVOICER_DATABASE_URL":    "postgres://localhost/invoicer",
			"INVOICER_STORAGE_BACKEND": "ftp",
		}},
		{"negative interval", map[string]string{
			"INVOICER_DATABASE_URL":      "postgres://localhost/invoicer",
			"INVOICER_SCHEDULE_INTERVAL": "-1s",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := testLoad(t)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_DatabaseOptional(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("INVOICER_DATABASE_URL", "")

	cfg, err := testLoad(t)
	require.NoError(t, err, "CLI commands work without a database")
	assert.Empty(t, cfg.DatabaseURL)
}
