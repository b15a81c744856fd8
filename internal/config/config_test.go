package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/livefir/livemark/internal/validation"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Cache.Capacity != 512 {
		t.Errorf("Expected cache capacity 512, got %d", config.Cache.Capacity)
	}

	if !config.Parser.GFM {
		t.Error("Expected GFM enabled by default")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
cache:
  capacity: 64
parser:
  throttle: 150ms
  workers: 2
render:
  width: 100
  theme:
    heading: "#ffffff"
stream:
  interval: 5ms
log:
  level: debug
  format: json
`)

	config, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if config.Cache.Capacity != 64 {
		t.Errorf("Expected capacity 64, got %d", config.Cache.Capacity)
	}
	if config.Parser.Throttle != 150*time.Millisecond {
		t.Errorf("Expected throttle 150ms, got %v", config.Parser.Throttle)
	}
	if config.Render.Width != 100 || config.Render.Theme.Heading != "#ffffff" {
		t.Errorf("unexpected render config %+v", config.Render)
	}

	// Fields not present keep their defaults
	if config.Render.Theme.Link != DefaultConfig().Render.Theme.Link {
		t.Errorf("Expected default link color, got %q", config.Render.Theme.Link)
	}
	if config.Stream.ChunkSize != 4 {
		t.Errorf("Expected default chunk size 4, got %d", config.Stream.ChunkSize)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"capacity", "cache:\n  capacity: 0\n", "cache.capacity"},
		{"workers", "parser:\n  workers: 0\n", "parser.workers"},
		{"addr", "server:\n  addr: nowhere\n", "server.addr"},
		{"level", "log:\n  level: loud\n", "log.level"},
		{"format", "log:\n  format: xml\n", "log.format"},
		{"color", "render:\n  theme:\n    code: yellow\n", "render.theme.code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Expected validation error")
			}

			var multi validation.MultiError
			if !errors.As(err, &multi) {
				t.Fatalf("Expected MultiError, got %T: %v", err, err)
			}
			if !multi.Has(tt.field) {
				t.Errorf("Expected error for %s, got %v", tt.field, multi)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse([]byte("cache: [")); err == nil {
		t.Error("Expected YAML error")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Cache.Capacity != DefaultConfig().Cache.Capacity {
		t.Error("Expected defaults for missing file")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	config := DefaultConfig()
	config.Cache.Capacity = 7
	config.Parser.Throttle = 40 * time.Millisecond

	if err := Save(path, config); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected config file: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Cache.Capacity != 7 || loaded.Parser.Throttle != 40*time.Millisecond {
		t.Errorf("unexpected loaded config %+v", loaded)
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	if err := DefaultConfig().Encode(&buf); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"capacity: 512", "list_marker:", "localhost:8080", "interval: 20ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in encoded config:\n%s", want, out)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("Expected JSON record, got %s", out)
	}

	if (LogConfig{Level: "bogus"}).SlogLevel() != slog.LevelInfo {
		t.Error("Expected unknown level to fall back to info")
	}
}
