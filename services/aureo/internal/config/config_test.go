package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const baseConfig = `
port: "8080"
logLevel: "info"
databaseURL: "file:aureo.db"
jwtSecret: "0123456789abcdef0123456789abcdef"
excelWatchDir: "/srv/watch/excel"
pdfWatchDir: "/srv/watch/pdf"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UploadDir != "uploads" {
		t.Fatalf("uploadDir = %q, want uploads", cfg.UploadDir)
	}
	if cfg.QueueBackend != QueueMemory {
		t.Fatalf("queueBackend = %q, want memory", cfg.QueueBackend)
	}
	if cfg.QueueConcurrency != 2 || cfg.QueueCapacity != 64 {
		t.Fatalf("queue defaults = %d/%d", cfg.QueueConcurrency, cfg.QueueCapacity)
	}
	if cfg.ExcelWatchDir != "/srv/watch/excel" {
		t.Fatalf("excelWatchDir = %q", cfg.ExcelWatchDir)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUREO_PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("AUREO_QUEUE_BACKEND", "redis")
	t.Setenv("AUREO_QUEUE_CONCURRENCY", "6")
	t.Setenv("AUREO_USE_PDFTOTEXT", "true")
	t.Setenv("AUREO_CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("AUREO_SETTLE_DELAY", "250ms")

	cfg, err := Load(writeConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.QueueBackend != QueueRedis || cfg.QueueConcurrency != 6 {
		t.Fatalf("queue = %q/%d", cfg.QueueBackend, cfg.QueueConcurrency)
	}
	if !cfg.UsePdftotext {
		t.Fatalf("usePdftotext = false, want true")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("corsOrigins = %v", cfg.CORSOrigins)
	}
	delay, err := ParseDuration("settleDelay", cfg.SettleDelay, time.Second)
	if err != nil || delay != 250*time.Millisecond {
		t.Fatalf("settleDelay = %v, %v", delay, err)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"missing port", strings.Replace(baseConfig, `port: "8080"`, "", 1), "port is required"},
		{"short secret", strings.Replace(baseConfig, "0123456789abcdef0123456789abcdef", "short", 1), "at least 32 bytes"},
		{"redis queue without redis", baseConfig + "queueBackend: redis\n", "requires redisAddr"},
		{"unknown queue", baseConfig + "queueBackend: kafka\n", "unknown queueBackend"},
		{"bad duration", baseConfig + "staleAfter: soon\n", "invalid staleAfter"},
		{"partial minio", baseConfig + "minioEndpoint: localhost:9000\n", "minioBucket"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestParseDurationDefault(t *testing.T) {
	got, err := ParseDuration("x", "", 5*time.Minute)
	if err != nil || got != 5*time.Minute {
		t.Fatalf("got %v, %v", got, err)
	}
	if _, err := ParseDuration("x", "-1s", 0); err == nil {
		t.Fatalf("expected error for negative duration")
	}
}
