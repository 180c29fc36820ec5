// Package config loads and validates exporter configuration from command
// line flags and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the exporter.
type Config struct {
	// LndEndpoint is the host:port of the monitored lnd gRPC API.
	LndEndpoint string `mapstructure:"lnd-endpoint"`

	// TLSCertPath points at lnd's TLS certificate. Empty means the system
	// root pool.
	TLSCertPath string `mapstructure:"tls-cert-path"`

	// MacaroonPath points at a macaroon with read permissions. Empty
	// disables macaroon authentication.
	MacaroonPath string `mapstructure:"macaroon-path"`

	// MetricsAddr is the listen address for the HTTP metrics server.
	MetricsAddr string `mapstructure:"metrics-addr"`

	// RPCTimeout bounds the RPC calls of one collection cycle. Zero
	// disables the deadline; a hung node then stalls the cycle and every
	// queued scrape behind it.
	RPCTimeout time.Duration `mapstructure:"rpc-timeout"`

	// CursorBackend selects the payment cursor backend.
	// Valid values: "memory" (default, no persistence), "s3".
	CursorBackend string `mapstructure:"cursor-backend"`

	// S3Bucket is the S3 bucket for cursor snapshots. Required when
	// CursorBackend is "s3".
	S3Bucket string `mapstructure:"s3-bucket"`

	// S3KeyPrefix is the key prefix for cursor snapshots. Default: "lnd-exporter".
	S3KeyPrefix string `mapstructure:"s3-key-prefix"`

	// S3Region is the AWS region for the S3 client. Default: "us-east-1".
	S3Region string `mapstructure:"s3-region"`

	// S3Endpoint is an optional custom S3 endpoint URL (for MinIO, LocalStack, etc.).
	S3Endpoint string `mapstructure:"s3-endpoint"`
}

// Defaults, shared with the flag definitions in cmd/exporter.
const (
	DefaultLndEndpoint   = "localhost:10009"
	DefaultMetricsAddr   = ":29090"
	DefaultCursorBackend = "memory"
	DefaultS3KeyPrefix   = "lnd-exporter"
	DefaultS3Region      = "us-east-1"
)

// envPrefix prefixes every environment variable the exporter reads,
// e.g. LND_EXPORTER_LND_ENDPOINT or LND_EXPORTER_RPC_TIMEOUT.
const envPrefix = "LND_EXPORTER"

// setDefaults registers a default for every known key. Keys without a
// meaningful default get the empty string so viper still surfaces their
// environment variables to Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("lnd-endpoint", DefaultLndEndpoint)
	v.SetDefault("tls-cert-path", "")
	v.SetDefault("macaroon-path", "")
	v.SetDefault("metrics-addr", DefaultMetricsAddr)
	v.SetDefault("rpc-timeout", time.Duration(0))
	v.SetDefault("cursor-backend", DefaultCursorBackend)
	v.SetDefault("s3-bucket", "")
	v.SetDefault("s3-key-prefix", DefaultS3KeyPrefix)
	v.SetDefault("s3-region", DefaultS3Region)
	v.SetDefault("s3-endpoint", "")
}

// Load reads configuration from v (bound flags, LND_EXPORTER_* environment
// variables and defaults, in that order of precedence) and returns a
// validated Config.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency and normalises the S3
// key prefix.
func (c *Config) Validate() error {
	if c.LndEndpoint == "" {
		return fmt.Errorf("lnd endpoint must not be empty")
	}
	if c.MetricsAddr == "" {
		return fmt.Errorf("metrics address must not be empty")
	}
	if c.RPCTimeout < 0 {
		return fmt.Errorf("rpc timeout must not be negative, got %s", c.RPCTimeout)
	}

	switch c.CursorBackend {
	case "memory", "s3":
		// valid
	default:
		return fmt.Errorf("cursor backend must be \"memory\" or \"s3\", got %q", c.CursorBackend)
	}

	if c.CursorBackend == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("s3 bucket is required when cursor backend is \"s3\"")
	}

	if strings.Contains(c.S3KeyPrefix, "..") {
		return fmt.Errorf("s3 key prefix must not contain '..', got %q", c.S3KeyPrefix)
	}
	c.S3KeyPrefix = strings.Trim(c.S3KeyPrefix, "/")
	if c.S3KeyPrefix == "" {
		c.S3KeyPrefix = DefaultS3KeyPrefix
	}

	return nil
}
