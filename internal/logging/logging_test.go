package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("presence")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("connected", "slot", 0)

	out := buf.String()
	if strings.Contains(out, `msg="INFO connected`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=connected") {
		t.Fatalf("expected plain connected message, got: %s", out)
	}
	if !strings.Contains(out, "component=presence") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "slot=0") {
		t.Fatalf("expected slot field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("presence")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestWithSlotAddsField(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger := WithSlot(L("presence"), 3)
	logger.Info("opened")

	if !strings.Contains(buf.String(), "slot=3") {
		t.Fatalf("expected slot=3 field, got: %s", buf.String())
	}
}
