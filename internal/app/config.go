package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Storage backends.
const (
	StorageFS = "fs"
	StorageS3 = "s3"
)

// Config holds the complete application configuration, loadable from
// environment variables (INVOICER_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string        `usage:"PostgreSQL connection URL (INVOICER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	WriteTimeout time.Duration `default:"2m" usage:"HTTP response write timeout; must cover a full batch" flag:"write-timeout"`
	Storage      StorageConfig
	Payment      PaymentConfig
	Pipeline     PipelineConfig
	Issuer       IssuerConfig
	Schedule     ScheduleConfig
	Graceful     GracefulConfig
}

// StorageConfig selects and configures the invoice object store.
type StorageConfig struct {
	Backend         string        `default:"fs" usage:"Invoice storage backend: fs or s3"`
	Dir             string        `default:"invoices" usage:"Directory for the fs backend"`
	Bucket          string        `default:"invoices" usage:"Bucket for the s3 backend"`
	Region          string        `default:"us-east-1" usage:"S3 region"`
	Endpoint        string        `usage:"S3-compatible endpoint URL (MinIO, Supabase storage)"`
	AccessKeyID     string        `usage:"S3 access key id; default AWS credential chain when empty"`
	SecretAccessKey string        `usage:"S3 secret access key"`
	PublicBaseURL   string        `usage:"Public URL prefix under which stored invoices are reachable"`
	Timeout         time.Duration `default:"30s" usage:"Upload timeout per invoice"`
}

// PaymentConfig configures the payment gateway client.
type PaymentConfig struct {
	BaseURL   string        `default:"https://api.razorpay.com" usage:"Payment gateway base URL"`
	KeyID     string        `usage:"Payment gateway key id"`
	KeySecret string        `usage:"Payment gateway key secret"`
	Timeout   time.Duration `default:"10s" usage:"Payment lookup timeout per order"`
}

// PipelineConfig tunes batch processing.
type PipelineConfig struct {
	Workers     int `default:"4" usage:"Orders processed concurrently"`
	MaxQuantity int `default:"5" usage:"Per-line quantity above which an order is suspicious"`
	BatchLimit  int `default:"0" usage:"Maximum orders per batch; 0 means all"`
}

// IssuerConfig is the business printed in the invoice header.
type IssuerConfig struct {
	Name    string `default:"Invoicer Store" usage:"Issuer name"`
	Address string `usage:"Issuer address line"`
	Contact string `usage:"Issuer contact line"`
}

// ScheduleConfig controls periodic batches.
type ScheduleConfig struct {
	Interval time.Duration `default:"0s" usage:"Run a batch every interval; 0 disables the scheduler"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads the server configuration from environment variables,
// flags and YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	cfg, err := loadConfig(loaderConfig(false))
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set INVOICER_DATABASE_URL or DATABASE_URL")
	}
	return cfg, nil
}

// LoadCLIConfig loads configuration like LoadConfig but leaves command-line
// flags to the caller and does not require a database URL.
func LoadCLIConfig() (*Config, error) {
	return loadConfig(loaderConfig(true))
}

func loaderConfig(skipFlags bool) aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "INVOICER",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/invoicer/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's INVOICER_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case StorageFS:
		if c.Storage.Dir == "" {
			return errors.New("storage dir is required for the fs backend")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage bucket is required for the s3 backend")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Schedule.Interval < 0 {
		return errors.New("schedule interval must not be negative")
	}
	return nil
}
