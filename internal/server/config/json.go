package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/kycvault/internal/flagx"
	"github.com/dmitrijs2005/kycvault/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept "30s"
// or integer nanoseconds. Absent fields keep their previous value.
type JsonConfig struct {
	EndpointAddrGRPC  string         `json:"endpoint_addr_grpc"`
	MetricsAddr       string         `json:"metrics_addr"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3UsePathStyle    *bool          `json:"s3_use_path_style"`
	S3RequestTimeout  timex.Duration `json:"s3_request_timeout"`
	S3MaxAttempts     int            `json:"s3_max_attempts"`
	PresignTTL        timex.Duration `json:"presign_ttl"`
	ConditionalWrites *bool          `json:"conditional_writes"`
	IndexMaxRetries   int            `json:"index_max_retries"`
	IndexRetryBase    timex.Duration `json:"index_retry_base"`
	QueryConcurrency  int            `json:"query_concurrency"`
	LogLevel          string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any. A missing or
// malformed file panics.
func parseJson(config *Config) {
	if err := loadJSONFile(config, flagx.JsonConfigFlags()); err != nil {
		panic(err)
	}
}

func loadJSONFile(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	if c.ConditionalWrites != nil {
		config.ConditionalWrites = *c.ConditionalWrites
	}
	if c.S3RequestTimeout.Duration > 0 {
		config.S3RequestTimeout = c.S3RequestTimeout.Duration
	}
	if c.PresignTTL.Duration > 0 {
		config.PresignTTL = c.PresignTTL.Duration
	}
	if c.IndexRetryBase.Duration > 0 {
		config.IndexRetryBase = c.IndexRetryBase.Duration
	}
	if c.S3MaxAttempts > 0 {
		config.S3MaxAttempts = c.S3MaxAttempts
	}
	if c.IndexMaxRetries > 0 {
		config.IndexMaxRetries = c.IndexMaxRetries
	}
	if c.QueryConcurrency > 0 {
		config.QueryConcurrency = c.QueryConcurrency
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
