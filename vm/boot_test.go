package vm

import (
	"bytes"
	"strings"
	"testing"
)

func TestBootTraceEmitsOneLinePerStep(t *testing.T) {
	var traceOut, deviceOut bytes.Buffer
	machine := NewWithOutput(&deviceOut)
	copy(machine.mem.data[:], buildImage([]byte{byte(BRK)}, []byte{byte(LIT), 1, 'A', byte(BRK)}))

	err := machine.BootTrace(&traceOut)
	assert(t, err == nil, "unexpected error: %v", err)

	// reset phase: 1 step (BRK). frame phase: 3 steps (LIT, its literal
	// data byte, then BRK) - BootTrace logs one line per Step call, and
	// literal-mode data bytes consume their own Step just like any opcode.
	lines := strings.Split(strings.TrimSpace(traceOut.String()), "\n")
	assert(t, len(lines) == 4, "expected 1 reset-phase line + 3 frame-phase lines, got %d: %q", len(lines), traceOut.String())
	assert(t, strings.HasPrefix(lines[0], "reset"), "expected reset phase line first, got %q", lines[0])
	assert(t, strings.HasPrefix(lines[1], "frame"), "expected frame phase lines after, got %q", lines[1])
}
