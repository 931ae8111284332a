package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Property 1: Component logs are structured JSON carrying the component field
func TestProperty_ComponentLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("component log entries decode as JSON with component and message", prop.ForAll(
		func(message string, component string) bool {
			var buf bytes.Buffer

			encoderConfig := zapcore.EncoderConfig{
				TimeKey:     "timestamp",
				LevelKey:    "level",
				NameKey:     "logger",
				MessageKey:  "message",
				EncodeLevel: zapcore.LowercaseLevelEncoder,
				EncodeTime:  zapcore.ISO8601TimeEncoder,
			}
			core := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(&buf),
				zapcore.DebugLevel,
			)

			log := Component(zap.New(core), component)
			log.Info(message)
			_ = log.Sync()

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}
			return entry["message"] == message &&
				entry["component"] == component &&
				entry["logger"] == component
		},
		gen.AlphaString(),
		gen.RegexMatch(`[a-z]{3,12}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNew_Environments(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		log, err := New(env, "")
		if err != nil {
			t.Fatalf("New(%q): %v", env, err)
		}
		if log == nil {
			t.Fatalf("New(%q) returned nil logger", env)
		}
	}
}

func TestNew_Level(t *testing.T) {
	log, err := New("production", "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}

	if _, err := New("production", "chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestComponent_NilBase(t *testing.T) {
	log := Component(nil, "offers")
	log.Info("dropped")
}

func TestComponent_AddsField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Component(zap.New(core), "realtime").Info("subscribed", zap.String("listing_id", "abc"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "realtime" || fields["listing_id"] != "abc" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if entries[0].LoggerName != "realtime" {
		t.Errorf("expected logger name realtime, got %q", entries[0].LoggerName)
	}
}
