package util

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogIncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	InitLoggerTo(&buf, "info")

	h := WithRequestID(WithClientIP(nil, WithRequestLog(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))))
	req := httptest.NewRequest(http.MethodGet, "/api/stores", nil)
	req.Header.Set("X-Request-Id", "req-1")
	req.RemoteAddr = "198.51.100.7:5000"
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["msg"] != "http_request" {
		t.Fatalf("msg = %v", line["msg"])
	}
	if line["request_id"] != "req-1" {
		t.Fatalf("request_id = %v", line["request_id"])
	}
	if line["status"] != float64(http.StatusTeapot) {
		t.Fatalf("status = %v", line["status"])
	}
	if line["bytes"] != float64(2) {
		t.Fatalf("bytes = %v", line["bytes"])
	}
	if line["client_ip"] != "198.51.100.7" {
		t.Fatalf("client_ip = %v", line["client_ip"])
	}
	if line["method"] != http.MethodGet || line["path"] != "/api/stores" {
		t.Fatalf("method/path = %v %v", line["method"], line["path"])
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
