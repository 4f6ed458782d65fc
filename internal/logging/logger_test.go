package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// withObservedLogger swaps the package logger for an observed one for the
// duration of a test.
func withObservedLogger(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	old := logger
	logger = zap.New(core)
	t.Cleanup(func() { logger = old })
	return logs
}

func TestLogControlTransfer(t *testing.T) {
	logs := withObservedLogger(t, zapcore.DebugLevel)

	LogControlTransfer("in", 0xd6, 1, 2, []byte{0xde, 0xad})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["direction"] != "in" {
		t.Errorf("direction = %v, want in", fields["direction"])
	}
	if fields["request"] != uint8(0xd6) {
		t.Errorf("request = %v, want 0xd6", fields["request"])
	}
	if fields["hex"] != "dead" {
		t.Errorf("hex = %v, want dead", fields["hex"])
	}
}

func TestLogControlTransferSilentAboveDebug(t *testing.T) {
	logs := withObservedLogger(t, zapcore.InfoLevel)

	LogControlTransfer("out", 0xd8, 0, 0, nil)

	if n := logs.Len(); n != 0 {
		t.Errorf("logged %d entries at info level, want 0", n)
	}
}

func TestLogRawBytes(t *testing.T) {
	logs := withObservedLogger(t, zapcore.DebugLevel)

	LogRawBytes("bulk OUT ep2", []byte("v1.2\x00\xff"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if entries[0].Message != "bulk OUT ep2" {
		t.Errorf("message = %q, want %q", entries[0].Message, "bulk OUT ep2")
	}
	fields := entries[0].ContextMap()
	if fields["ascii"] != "v1.2.." {
		t.Errorf("ascii = %v, want v1.2..", fields["ascii"])
	}
}

func TestHexDumpTruncation(t *testing.T) {
	data := bytes.Repeat([]byte{0xaa}, 300)

	dump := hexDump(data)
	if !strings.HasSuffix(dump, "...") {
		t.Error("dump of oversized payload missing truncation marker")
	}
	// 256 bytes of hex plus the marker
	if len(dump) != 256*2+3 {
		t.Errorf("dump length = %d, want %d", len(dump), 256*2+3)
	}

	if hexDump(nil) != "" {
		t.Error("dump of empty payload should be empty")
	}
}

func TestAsciiDumpNonPrintable(t *testing.T) {
	if got := asciiDump([]byte{'a', 0x00, 'b', 0x7f}); got != "a.b." {
		t.Errorf("asciiDump = %q, want %q", got, "a.b.")
	}
}

func TestGetLoggerFallsBackToNop(t *testing.T) {
	old := logger
	logger = nil
	t.Cleanup(func() { logger = old })

	if GetLogger() == nil {
		t.Fatal("GetLogger returned nil")
	}
}
