// Package config handles configuration for the vault server and CLI:
// defaults, JSON overlay, environment variables and command-line flags.
package config

import "time"

// Config holds runtime settings.
//
// Fields:
//   - EndpointAddrGRPC: bind address for the query gRPC endpoint.
//   - MetricsAddr: bind address for /metrics and /healthz.
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint / S3UsePathStyle: object storage settings.
//   - S3RequestTimeout / S3MaxAttempts: transport bounds, never infinite.
//   - PresignTTL: lifetime of download URLs handed out by the assembler.
//   - ConditionalWrites: guard index writes with ETag preconditions. Turn off
//     only for stores that reject If-Match; aggregates then become best-effort.
//   - IndexMaxRetries / IndexRetryBase: retry budget for conflicting index writes.
//   - QueryConcurrency: parallel object fetches per query.
type Config struct {
	EndpointAddrGRPC  string        `env:"KYC_GRPC_ADDR"`
	MetricsAddr       string        `env:"KYC_METRICS_ADDR"`
	S3RootUser        string        `env:"KYC_S3_ACCESS_KEY"`
	S3RootPassword    string        `env:"KYC_S3_SECRET_KEY"`
	S3Bucket          string        `env:"KYC_S3_BUCKET"`
	S3Region          string        `env:"KYC_S3_REGION"`
	S3BaseEndpoint    string        `env:"KYC_S3_ENDPOINT"`
	S3UsePathStyle    bool          `env:"KYC_S3_PATH_STYLE"`
	S3RequestTimeout  time.Duration `env:"KYC_S3_TIMEOUT"`
	S3MaxAttempts     int           `env:"KYC_S3_MAX_ATTEMPTS"`
	PresignTTL        time.Duration `env:"KYC_PRESIGN_TTL"`
	ConditionalWrites bool          `env:"KYC_CONDITIONAL_WRITES"`
	IndexMaxRetries   int           `env:"KYC_INDEX_MAX_RETRIES"`
	IndexRetryBase    time.Duration `env:"KYC_INDEX_RETRY_BASE"`
	QueryConcurrency  int           `env:"KYC_QUERY_CONCURRENCY"`
	LogLevel          string        `env:"KYC_LOG_LEVEL"`
}

// LoadDefaults populates Config with development defaults pointing at a
// local MinIO.
// NOTE: the credentials are MinIO's stock ones and must be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.MetricsAddr = ":9464"
	c.S3RootUser = "minioadmin"
	c.S3RootPassword = "minioadmin"
	c.S3Bucket = "kyc-verifications"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.S3UsePathStyle = true
	c.S3RequestTimeout = 30 * time.Second
	c.S3MaxAttempts = 3
	c.PresignTTL = time.Hour
	c.ConditionalWrites = true
	c.IndexMaxRetries = 5
	c.IndexRetryBase = 50 * time.Millisecond
	c.QueryConcurrency = 8
	c.LogLevel = "info"
}

// Load applies defaults, the JSON file at path (skipped when empty) and
// then the environment. Command-line handling is left to the caller.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := loadJSONFile(cfg, path); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig builds the server Config: defaults, JSON file from -c/-config,
// environment, then command-line flags. Invalid input panics, as it can only
// happen at startup.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	if err := parseEnv(cfg); err != nil {
		panic(err)
	}
	parseFlags(cfg)
	return cfg
}
