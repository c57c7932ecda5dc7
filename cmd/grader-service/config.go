package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gradebox/internal/common/cache"
	"gradebox/internal/common/mq"
	"gradebox/internal/common/storage"
	"gradebox/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	// MaxUploadBytes caps submission artifacts accepted over HTTP.
	MaxUploadBytes int64 `yaml:"maxUploadBytes"`
}

// KafkaConfig holds Kafka producer settings. An empty broker list disables
// status event publishing.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientID"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"`
	Compression  string        `yaml:"compression"`
	FinalTopic   string        `yaml:"finalTopic"`
}

// RedisConfig holds status store settings. An empty addr disables the store.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// MinIOConfig holds report archive settings. An empty endpoint disables
// archival.
type MinIOConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"accessKey"`
	SecretKey string        `yaml:"secretKey"`
	UseSSL    bool          `yaml:"useSSL"`
	Bucket    string        `yaml:"bucket"`
	Timeout   time.Duration `yaml:"timeout"`
}

// GradingConfig holds the grading pipeline settings.
type GradingConfig struct {
	WorkRoot          string        `yaml:"workRoot"`
	FastCommand       string        `yaml:"fastCommand"`
	FullCommand       string        `yaml:"fullCommand"`
	Timeout           time.Duration `yaml:"timeout"`
	SourceExt         string        `yaml:"sourceExt"`
	SolutionFilename  string        `yaml:"solutionFilename"`
	MaxArchiveBytes   int64         `yaml:"maxArchiveBytes"`
	MaxArchiveEntries int           `yaml:"maxArchiveEntries"`
	CaptureMaxBytes   int64         `yaml:"captureMaxBytes"`
	MaxConcurrentJobs int           `yaml:"maxConcurrentJobs"`
	AcquirePatience   time.Duration `yaml:"acquirePatience"`

	// SandboxInit is the path to the sandbox-init helper binary. Empty runs
	// grading commands without the pre-exec guard.
	SandboxInit    string `yaml:"sandboxInit"`
	SeccompProfile string `yaml:"seccompProfile"`
}

// AppConfig holds grader-service config.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logger  logger.Config `yaml:"logger"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	MinIO   MinIOConfig   `yaml:"minio"`
	Grading GradingConfig `yaml:"grading"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Grading.WorkRoot == "" {
		return nil, fmt.Errorf("grading workRoot is required")
	}
	if cfg.Grading.FastCommand == "" || cfg.Grading.FullCommand == "" {
		return nil, fmt.Errorf("grading fastCommand and fullCommand are required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		// Grading holds the request open; the write timeout must outlast two
		// back-to-back strategy attempts.
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Kafka.FinalTopic == "" {
		cfg.Kafka.FinalTopic = "grader.status.final"
	}
	return &cfg, nil
}

func (r RedisConfig) toCacheConfig() *cache.RedisConfig {
	cfg := cache.DefaultRedisConfig()
	cfg.Addr = r.Addr
	cfg.Password = r.Password
	cfg.DB = r.DB
	return cfg
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		ReadTimeout:  k.ReadTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		Compression:  parseCompression(k.Compression),
	}
}

func (m MinIOConfig) toStorageConfig() storage.MinIOConfig {
	return storage.MinIOConfig{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		UseSSL:    m.UseSSL,
		Bucket:    m.Bucket,
	}
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}
