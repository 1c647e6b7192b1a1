package zaplog

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core)), logs
}

func TestLoggerMapsKeyValueArgs(t *testing.T) {
	logger, logs := newObserved()
	logger.Info("token refreshed", "platform", "ZOHO", "user_id", "u1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["platform"] != "ZOHO" || ctx["user_id"] != "u1" {
		t.Fatalf("unexpected fields %#v", ctx)
	}
}

func TestLoggerTreatsBareErrorAsErrorField(t *testing.T) {
	logger, logs := newObserved()
	logger.Error("refresh failed", errors.New("boom"), "platform", "XERO")

	ctx := logs.All()[0].ContextMap()
	if ctx["error"] != "boom" {
		t.Fatalf("expected error field, got %#v", ctx)
	}
	if ctx["platform"] != "XERO" {
		t.Fatalf("expected platform after error, got %#v", ctx)
	}
}

func TestLoggerOddArgsKeepTrailingValue(t *testing.T) {
	logger, logs := newObserved()
	logger.Warn("odd", "dangling")

	ctx := logs.All()[0].ContextMap()
	if ctx["extra"] != "dangling" {
		t.Fatalf("expected trailing arg under extra, got %#v", ctx)
	}
}

func TestWithFieldsAndProviderNames(t *testing.T) {
	logger, logs := newObserved()
	provider := NewProvider(logger)

	named := provider.GetLogger("gateway")
	withFields := named.(*Logger).WithFields(map[string]any{"operation": "rpc"})
	withFields.Debug("dispatched")

	entry := logs.All()[0]
	if entry.LoggerName != "gateway" {
		t.Fatalf("expected named logger, got %q", entry.LoggerName)
	}
	if entry.ContextMap()["operation"] != "rpc" {
		t.Fatalf("expected operation field, got %#v", entry.ContextMap())
	}
	if provider.GetLogger("") != logger {
		t.Fatalf("expected root logger for empty name")
	}
}

func TestNewProductionFallsBackToInfo(t *testing.T) {
	logger, err := NewProduction("not-a-level")
	if err != nil {
		t.Fatalf("new production: %v", err)
	}
	if logger.Zap().Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug disabled for fallback level")
	}
	if !logger.Zap().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info enabled")
	}
}
