package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// captureLogOutput redirects the default logger to a buffer for the
// duration of f.
func captureLogOutput(t *testing.T, level Level, format Format, f func()) string {
	t.Helper()
	var buf bytes.Buffer
	old := defaultLogger
	InitLoggerTo(&buf, level, format)
	defer func() { defaultLogger = old }()
	f()
	return buf.String()
}

func decodeLine(t *testing.T, out string) map[string]any {
	t.Helper()
	line := strings.TrimSpace(strings.Split(strings.TrimSpace(out), "\n")[0])
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", line, err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat('') = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestLevelFiltering(t *testing.T) {
	out := captureLogOutput(t, LevelWarn, FormatJSON, func() {
		Debug("hidden")
		Info("hidden")
		Warn("shown")
	})
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered messages: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("output missing warn message: %s", out)
	}
}

func TestTextFormat(t *testing.T) {
	out := captureLogOutput(t, LevelInfo, FormatText, func() {
		Info("hello", "key", "value")
	})
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "key=value") {
		t.Errorf("text output = %q", out)
	}
}

func TestTimestampFormat(t *testing.T) {
	out := captureLogOutput(t, LevelInfo, FormatJSON, func() {
		Info("tick")
	})
	m := decodeLine(t, out)
	ts, ok := m["time"].(string)
	if !ok {
		t.Fatalf("time field missing: %v", m)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc123")
	if got := GetRequestID(ctx); got != "abc123" {
		t.Errorf("GetRequestID() = %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID(empty) = %q", got)
	}

	out := captureLogOutput(t, LevelDebug, FormatJSON, func() {
		InfoContext(ctx, "with id")
	})
	if m := decodeLine(t, out); m["request_id"] != "abc123" {
		t.Errorf("request_id = %v", m["request_id"])
	}
}

func TestEventHelpers(t *testing.T) {
	tests := []struct {
		name    string
		log     func()
		wantMsg string
		wantKey string
		wantVal any
	}{
		{"search", func() { SearchPublished(3, "light", 12, 5*time.Millisecond) }, "search_published", "query", "light"},
		{"import", func() { ImportEvent("skipped", "KJV", "reason", "unchanged") }, "import_event", "translation", "KJV"},
		{"websocket", func() { WebSocketEvent("client_connected", 2) }, "websocket_event", "client_count", float64(2)},
		{"startup", func() { ServerStartup("http", ":8080") }, "server_startup", "addr", ":8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := decodeLine(t, captureLogOutput(t, LevelInfo, FormatJSON, tt.log))
			if m["msg"] != tt.wantMsg {
				t.Errorf("msg = %v, want %v", m["msg"], tt.wantMsg)
			}
			if m[tt.wantKey] != tt.wantVal {
				t.Errorf("%s = %v, want %v", tt.wantKey, m[tt.wantKey], tt.wantVal)
			}
		})
	}
}

func TestCombinedMiddleware(t *testing.T) {
	handler := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("request id missing from handler context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	out := captureLogOutput(t, LevelInfo, FormatJSON, func() {
		req := httptest.NewRequest(http.MethodGet, "/api/nav/flatten", nil)
		req.Header.Set("X-Request-ID", "fixed-id")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Header().Get("X-Request-ID") != "fixed-id" {
			t.Errorf("X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
		}
	})

	m := decodeLine(t, out)
	if m["msg"] != "http_request" || m["status_code"] != float64(http.StatusTeapot) {
		t.Errorf("log = %v", m)
	}
	if m["path"] != "/api/nav/flatten" || m["request_id"] != "fixed-id" {
		t.Errorf("log = %v", m)
	}
}

func TestResponseWriterDefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	if _, err := rw.Write([]byte("ok")); err != nil {
		t.Fatal(err)
	}
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusOK || rec.Code != http.StatusOK {
		t.Errorf("status = %d/%d, want 200", rw.statusCode, rec.Code)
	}
}

func TestHijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("Hijack on a recorder should fail")
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := generateRequestID(), generateRequestID()
	if len(a) != 16 || a == b {
		t.Errorf("generateRequestID() = %q, %q", a, b)
	}
}
