package parquet

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	envEndpoint      = "S3_ENDPOINT"
	envRegion        = "S3_REGION"
	envBucket        = "S3_BUCKET"
	envAccessKey     = "S3_ACCESS_KEY"
	envSecretKey     = "S3_SECRET_KEY"
	envPrefix        = "PARQUET_PREFIX"
	envFlushInterval = "PARQUET_FLUSH_INTERVAL"
	envBatchRows     = "PARQUET_BATCH_ROWS"
)

// Config is the S3 target and batching of the price archive. Objects are
// written under Prefix/program=<kind>/date=<YYYY-MM-DD>/.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string

	Prefix        string
	FlushInterval time.Duration
	BatchRows     int
}

func DefaultConfig() Config {
	return Config{
		Region:        "us-east-1",
		Prefix:        "dex/prices/",
		FlushInterval: 15 * time.Minute,
		BatchRows:     5000,
	}
}

// configured reports whether an S3 target was provided at all.
func (c Config) configured() bool {
	return c.Endpoint != "" && c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

func (c Config) Validate() error {
	required := []struct{ name, value string }{
		{"s3 endpoint", c.Endpoint},
		{"s3 region", c.Region},
		{"s3 bucket", c.Bucket},
		{"s3 access key", c.AccessKey},
		{"s3 secret key", c.SecretKey},
		{"object prefix", c.Prefix},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}
	if c.FlushInterval <= 0 {
		return errors.New("flush interval must be positive")
	}
	if c.BatchRows <= 0 {
		return errors.New("batch rows must be positive")
	}
	return nil
}

// FromEnv overlays the S3_* and PARQUET_* variables on DefaultConfig.
// PARQUET_FLUSH_INTERVAL is a duration such as "10m".
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	for env, dst := range map[string]*string{
		envEndpoint:  &cfg.Endpoint,
		envRegion:    &cfg.Region,
		envBucket:    &cfg.Bucket,
		envAccessKey: &cfg.AccessKey,
		envSecretKey: &cfg.SecretKey,
		envPrefix:    &cfg.Prefix,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv(envFlushInterval); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envFlushInterval, err)
		}
		cfg.FlushInterval = interval
	}
	if v := os.Getenv(envBatchRows); v != "" {
		rows, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envBatchRows, err)
		}
		cfg.BatchRows = rows
	}
	return cfg, cfg.Validate()
}
