package parquet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Endpoint = "http://minio:9000"
	cfg.Bucket = "dex-parquet"
	cfg.AccessKey = "access"
	cfg.SecretKey = "secret"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid"},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, errMsg: "s3 endpoint is required"},
		{name: "missing bucket", mutate: func(c *Config) { c.Bucket = "" }, errMsg: "s3 bucket is required"},
		{name: "empty region", mutate: func(c *Config) { c.Region = "" }, errMsg: "s3 region is required"},
		{name: "empty prefix", mutate: func(c *Config) { c.Prefix = "" }, errMsg: "object prefix is required"},
		{name: "zero flush interval", mutate: func(c *Config) { c.FlushInterval = 0 }, errMsg: "flush interval must be positive"},
		{name: "zero batch rows", mutate: func(c *Config) { c.BatchRows = 0 }, errMsg: "batch rows must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.errMsg)
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(envEndpoint, "http://minio:9000")
	t.Setenv(envBucket, "dex-parquet")
	t.Setenv(envAccessKey, "access")
	t.Setenv(envSecretKey, "secret")
	t.Setenv(envPrefix, "archive/")
	t.Setenv(envFlushInterval, "10m")
	t.Setenv(envBatchRows, "100")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.configured())
	assert.Equal(t, "archive/", cfg.Prefix)
	assert.Equal(t, 10*time.Minute, cfg.FlushInterval)
	assert.Equal(t, 100, cfg.BatchRows)
	assert.Equal(t, "us-east-1", cfg.Region)

	t.Setenv(envFlushInterval, "600")
	_, err = FromEnv()
	require.ErrorContains(t, err, envFlushInterval)

	t.Setenv(envFlushInterval, "")
	t.Setenv(envBatchRows, "many")
	_, err = FromEnv()
	require.ErrorContains(t, err, envBatchRows)
}

func TestServiceConfigFromEnv(t *testing.T) {
	t.Setenv(envEndpoint, "http://minio:9000")
	t.Setenv(envBucket, "dex-parquet")
	t.Setenv(envAccessKey, "access")
	t.Setenv(envSecretKey, "secret")
	t.Setenv(envNATSURL, "nats://127.0.0.1:4222")
	t.Setenv(envPullTimeoutMS, "250")

	cfg, err := ServiceConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "DEX", cfg.Stream)
	assert.Equal(t, "parquet-sink", cfg.Consumer)
	assert.Equal(t, 250*time.Millisecond, cfg.PullTimeout)

	t.Setenv(envNATSURL, "")
	_, err = ServiceConfigFromEnv()
	require.ErrorContains(t, err, "nats url is required")
}
