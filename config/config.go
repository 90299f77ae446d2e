package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Ibovflow IbovflowConfig `yaml:"ibovflow"`
	Source   SourceConfig   `yaml:"source"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type IbovflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type SourceConfig struct {
	B3 B3SourceConfig `yaml:"b3"`
}

// B3SourceConfig drives the index composition fetch. PageSize is forwarded to
// the API as-is; out-of-range values surface as API errors rather than being
// rejected here.
type B3SourceConfig struct {
	URL       string          `yaml:"url"`
	Index     string          `yaml:"index"`
	Language  string          `yaml:"language"`
	PageSize  int             `yaml:"page_size"`
	AllPages  bool            `yaml:"all_pages"`
	Timeout   time.Duration   `yaml:"timeout"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

type StorageConfig struct {
	Backend string           `yaml:"backend"` // "s3" or "local"
	S3      S3Config         `yaml:"s3"`
	Local   LocalStoreConfig `yaml:"local"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LocalStoreConfig struct {
	Root string `yaml:"root"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

const (
	defaultAPIURL   = "https://sistemaswebb3-listados.b3.com.br/indexProxy/indexCall/GetPortfolioDay"
	defaultIndex    = "IBOV"
	defaultLanguage = "pt-br"
	defaultPageSize = 1200
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Source: SourceConfig{
			B3: B3SourceConfig{
				URL:      defaultAPIURL,
				Index:    defaultIndex,
				Language: defaultLanguage,
				PageSize: defaultPageSize,
				Timeout:  30 * time.Second,
				Retry:    RetryConfig{MaxAttempts: 3},
				RateLimit: RateLimitConfig{
					RequestsPerSecond: 1,
					BurstSize:         1,
				},
			},
		},
		Storage: StorageConfig{
			Backend: "s3",
			Local:   LocalStoreConfig{Root: "extracted_raw"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides layers scheduler-supplied environment variables over the
// file configuration. These names match the ones the job host exports.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("B3_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			config.Source.B3.PageSize = n
		}
	}
	if v := os.Getenv("B3_INDEX"); v != "" {
		config.Source.B3.Index = strings.TrimSpace(v)
	}
	if v := os.Getenv("B3_LANGUAGE"); v != "" {
		config.Source.B3.Language = strings.TrimSpace(v)
	}
	if v := os.Getenv("B3_EXTRACT_ALL_PAGES"); v != "" {
		config.Source.B3.AllPages = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		config.Storage.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("LOCAL_ROOT"); v != "" {
		config.Storage.Local.Root = strings.TrimSpace(v)
	}

	if config.Storage.Backend == "s3" {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Ibovflow.Name == "" {
		return fmt.Errorf("ibovflow.name is required")
	}
	if cfg.Ibovflow.Version == "" {
		return fmt.Errorf("ibovflow.version is required")
	}

	if cfg.Source.B3.URL == "" {
		return fmt.Errorf("source.b3.url is required")
	}
	if cfg.Source.B3.Timeout <= 0 {
		return fmt.Errorf("source.b3.timeout must be greater than 0")
	}
	if cfg.Source.B3.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("source.b3.retry.max_attempts must be greater than 0")
	}

	switch cfg.Storage.Backend {
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when the s3 backend is selected")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when the s3 backend is selected")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
		if IsProductionLike(AppEnvironment()) {
			if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
				return fmt.Errorf("storage.s3 credentials are required in %s", AppEnvironment())
			}
		}
	case "local":
		if cfg.Storage.Local.Root == "" {
			return fmt.Errorf("storage.local.root is required when the local backend is selected")
		}
	default:
		return fmt.Errorf("storage.backend must be 's3' or 'local', got '%s'", cfg.Storage.Backend)
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
