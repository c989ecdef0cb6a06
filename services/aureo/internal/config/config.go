package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the service configuration.
const ConfigPath = "config.yaml"

const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"logLevel"`
	DatabaseURL    string   `yaml:"databaseURL"`
	DBLogLevel     string   `yaml:"dbLogLevel"`
	RedisAddr      string   `yaml:"redisAddr"`
	RedisPassword  string   `yaml:"redisPassword"`
	CORSOrigins    []string `yaml:"corsOrigins"`
	TrustedProxies []string `yaml:"trustedProxies"`

	SessionTTL  string `yaml:"sessionTTL"`
	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`

	LoginRateLimitPerMinute int `yaml:"loginRateLimitPerMinute"`

	UploadDir     string `yaml:"uploadDir"`
	ExcelWatchDir string `yaml:"excelWatchDir"`
	PDFWatchDir   string `yaml:"pdfWatchDir"`
	SettleDelay   string `yaml:"settleDelay"`
	UsePdftotext  bool   `yaml:"usePdftotext"`

	QueueBackend           string `yaml:"queueBackend"`
	QueueName              string `yaml:"queueName"`
	QueueGroup             string `yaml:"queueGroup"`
	QueueCapacity          int    `yaml:"queueCapacity"`
	QueueConcurrency       int    `yaml:"queueConcurrency"`
	QueueMaxRetries        int    `yaml:"queueMaxRetries"`
	QueueRetryDelaySeconds int    `yaml:"queueRetryDelaySeconds"`

	RecoveryInterval string `yaml:"recoveryInterval"`
	StaleAfter       string `yaml:"staleAfter"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
}

// Load reads config from path (defaults to config.yaml), applies AUREO_*
// environment overrides and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	envString("AUREO_PORT", &cfg.Port)
	envString("AUREO_LOG_LEVEL", &cfg.LogLevel)
	envString("DATABASE_URL", &cfg.DatabaseURL)
	envString("AUREO_DATABASE_URL", &cfg.DatabaseURL)
	envString("REDIS_ADDR", &cfg.RedisAddr)
	envString("REDIS_PASSWORD", &cfg.RedisPassword)
	envString("AUREO_JWT_SECRET", &cfg.JWTSecret)
	envString("AUREO_SESSION_TTL", &cfg.SessionTTL)
	envString("AUREO_UPLOAD_DIR", &cfg.UploadDir)
	envString("AUREO_EXCEL_WATCH_DIR", &cfg.ExcelWatchDir)
	envString("AUREO_PDF_WATCH_DIR", &cfg.PDFWatchDir)
	envString("AUREO_SETTLE_DELAY", &cfg.SettleDelay)
	envString("AUREO_QUEUE_BACKEND", &cfg.QueueBackend)
	envString("AUREO_RECOVERY_INTERVAL", &cfg.RecoveryInterval)
	envString("AUREO_STALE_AFTER", &cfg.StaleAfter)
	envString("MINIO_ENDPOINT", &cfg.MinioEndpoint)
	envString("MINIO_ACCESS_KEY", &cfg.MinioAccessKey)
	envString("MINIO_SECRET_KEY", &cfg.MinioSecretKey)
	envString("MINIO_BUCKET", &cfg.MinioBucket)
	envInt("AUREO_QUEUE_CAPACITY", &cfg.QueueCapacity)
	envInt("AUREO_QUEUE_CONCURRENCY", &cfg.QueueConcurrency)
	envInt("AUREO_QUEUE_MAX_RETRIES", &cfg.QueueMaxRetries)
	envInt("AUREO_LOGIN_RATE_LIMIT_PER_MINUTE", &cfg.LoginRateLimitPerMinute)
	envBool("AUREO_USE_PDFTOTEXT", &cfg.UsePdftotext)
	envBool("MINIO_USE_SSL", &cfg.MinioUseSSL)
	if v := os.Getenv("AUREO_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("AUREO_TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.ExcelWatchDir == "" {
		cfg.ExcelWatchDir = "watch/excel"
	}
	if cfg.PDFWatchDir == "" {
		cfg.PDFWatchDir = "watch/pdf"
	}
	if cfg.QueueBackend == "" {
		cfg.QueueBackend = QueueMemory
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "aureo:tasks"
	}
	if cfg.QueueConcurrency == 0 {
		cfg.QueueConcurrency = 2
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = 64
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = 10
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	redisConfigured := strings.TrimSpace(cfg.RedisAddr) != ""
	if strings.TrimSpace(cfg.JWTSecret) == "" && !redisConfigured {
		return errors.New("config: either jwtSecret or redisAddr is required for sessions")
	}
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" && len(secret) < 32 {
		return errors.New("config: jwtSecret must be at least 32 bytes")
	}
	switch cfg.QueueBackend {
	case QueueMemory:
	case QueueRedis:
		if !redisConfigured {
			return errors.New("config: queueBackend redis requires redisAddr")
		}
	default:
		return fmt.Errorf("config: unknown queueBackend %q", cfg.QueueBackend)
	}
	if cfg.QueueCapacity < 0 || cfg.QueueConcurrency < 0 || cfg.QueueMaxRetries < 0 || cfg.QueueRetryDelaySeconds < 0 {
		return errors.New("config: queue settings must be >= 0")
	}
	if cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioBucket == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return errors.New("config: minioEndpoint requires minioBucket, minioAccessKey and minioSecretKey")
	}
	for name, raw := range map[string]string{
		"sessionTTL":       cfg.SessionTTL,
		"jwtLeeway":        cfg.JWTLeeway,
		"settleDelay":      cfg.SettleDelay,
		"recoveryInterval": cfg.RecoveryInterval,
		"staleAfter":       cfg.StaleAfter,
	} {
		if _, err := ParseDuration(name, raw, 0); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// ParseDuration parses an optional duration string, returning def when empty.
func ParseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", name)
	}
	return dur, nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
