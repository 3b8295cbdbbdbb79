package vm

import (
	"bytes"
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

// buildImage lays the reset code out at address 0x0000 and the frame code at
// 0x0100, and points ResetVectorAddr/FrameVectorAddr at them. No trailing BRK
// is appended: the rest of the image is zeroed, and 0x00 decodes as BRK.
func buildImage(reset []byte, frame []byte) []byte {
	img := make([]byte, memSize)

	copy(img[0x0000:], reset)
	resetAddr := uint16(0x0000)

	frameAddr := uint16(0x0100)
	copy(img[frameAddr:], frame)

	img[ResetVectorAddr] = byte(resetAddr >> 8)
	img[ResetVectorAddr+1] = byte(resetAddr)
	img[FrameVectorAddr] = byte(frameAddr >> 8)
	img[FrameVectorAddr+1] = byte(frameAddr)

	return img
}

func newBootedVM(t *testing.T, reset, frame []byte, out *bytes.Buffer) *VM {
	machine := NewWithOutput(out)
	copy(machine.mem.data[:], buildImage(reset, frame))
	err := machine.Boot()
	assert(t, err == nil, "unexpected boot error: %v", err)
	return machine
}

func TestHaltImmediately(t *testing.T) {
	var out bytes.Buffer
	machine := newBootedVM(t, []byte{byte(BRK)}, []byte{byte(BRK)}, &out)
	assert(t, machine.Halted(), "expected HALT after BRK")
	assert(t, machine.WorkingDepth() == 0, "expected empty working stack, got %d", machine.WorkingDepth())
}

func TestPrintCharViaOutputRegister(t *testing.T) {
	// LIT 1, 'A', LIT 2, hi(0xFFF1), lo(0xFFF1), STR, BRK
	frame := []byte{
		byte(LIT), 1, 'A',
		byte(LIT), 2, byte(OutputDeviceAddr >> 8), byte(OutputDeviceAddr & 0xFF),
		byte(STR),
		byte(BRK),
	}
	var out bytes.Buffer
	newBootedVM(t, []byte{byte(BRK)}, frame, &out)
	assert(t, out.String() == "A", "expected output %q, got %q", "A", out.String())
}

func TestAddition(t *testing.T) {
	// LIT 1, 2, LIT 1, 3, ADD, LIT 2, hi(0xFFF1), lo(0xFFF1), STR, BRK
	frame := []byte{
		byte(LIT), 1, 2,
		byte(LIT), 1, 3,
		byte(ADD),
		byte(LIT), 2, byte(OutputDeviceAddr >> 8), byte(OutputDeviceAddr & 0xFF),
		byte(STR),
		byte(BRK),
	}
	var out bytes.Buffer
	newBootedVM(t, []byte{byte(BRK)}, frame, &out)
	assert(t, out.Bytes()[0] == 5, "expected 2+3=5 written to output register, got %d", out.Bytes()[0])
}

func TestConditionalSkip(t *testing.T) {
	// A marker byte, then a falsy predicate on top, then a COND-flagged
	// POP. The predicate is popped unconditionally; since it's zero, POP
	// itself never runs, so the marker survives on the stack.
	condPop := byte(POP) | 0x80
	frame := []byte{
		byte(LIT), 1, 0x07, // marker, stays on the stack
		byte(LIT), 1, 0x00, // predicate (false), popped by COND
		condPop,
		byte(BRK),
	}
	var out bytes.Buffer
	machine := newBootedVM(t, []byte{byte(BRK)}, frame, &out)
	assert(t, machine.WorkingDepth() == 1, "expected marker byte left on stack, got %d", machine.WorkingDepth())
}

func TestJSRReturnsToCaller(t *testing.T) {
	// frame: LIT 2 hi(sub) lo(sub), JSR, LIT 1 0x2A, LIT 2 hi(out) lo(out), STR, BRK
	// sub (at 0x0120): RTS
	subAddr := uint16(0x0120)
	frame := []byte{
		byte(LIT), 2, byte(subAddr >> 8), byte(subAddr),
		byte(JSR),
		byte(LIT), 1, 0x2A,
		byte(LIT), 2, byte(OutputDeviceAddr >> 8), byte(OutputDeviceAddr & 0xFF),
		byte(STR),
		byte(BRK),
	}
	img := buildImage([]byte{byte(BRK)}, frame)
	img[subAddr] = byte(RTS)

	var out bytes.Buffer
	machine := NewWithOutput(&out)
	copy(machine.mem.data[:], img)
	err := machine.Boot()
	assert(t, err == nil, "unexpected boot error: %v", err)
	assert(t, machine.ReturnDepth() == 0, "expected return stack empty after RTS, got %d", machine.ReturnDepth())
	assert(t, out.Bytes()[0] == 0x2A, "expected 0x2A written after JSR/RTS round trip, got %#x", out.Bytes()[0])
}

func TestShortArithmeticWithShortBit(t *testing.T) {
	addShort := byte(ADD) | 0x20 // SHORT bit set -> ADD16
	frame := []byte{
		byte(LIT), 2, 0x01, 0x00, // push short 0x0100
		byte(LIT), 2, 0x00, 0x2A, // push short 0x002A
		addShort,
		byte(LIT), 2, byte(OutputDeviceAddr >> 8), byte(OutputDeviceAddr & 0xFF),
		byte(STR), // writes only the low byte of the sum; the high byte stays on the stack
		byte(POP),
		byte(BRK),
	}
	var out bytes.Buffer
	machine := newBootedVM(t, []byte{byte(BRK)}, frame, &out)
	assert(t, machine.WorkingDepth() == 0, "expected empty stack after draining the sum's high byte, got %d", machine.WorkingDepth())
	assert(t, out.Bytes()[0] == 0x2A, "expected low byte 0x2A of 0x012A, got %#x", out.Bytes()[0])
}

func TestStackUnderflowIsFatalToPhaseOnly(t *testing.T) {
	// ADD with an empty stack underflows during the reset phase; the frame
	// phase must still run to completion independently (spec.md §7).
	reset := []byte{byte(ADD)}
	frame := []byte{byte(BRK)}

	var out bytes.Buffer
	machine := NewWithOutput(&out)
	copy(machine.mem.data[:], buildImage(reset, frame))
	err := machine.Boot()

	assert(t, err != nil, "expected a stack underflow error from the reset phase")
	assert(t, machine.Halted(), "expected frame phase to reach HALT despite reset phase failing")
}

func TestDivisionByZeroIsNotFatal(t *testing.T) {
	frame := []byte{
		byte(LIT), 1, 5,
		byte(LIT), 1, 0,
		byte(DIV),
		byte(BRK),
	}
	// The quotient stays on the stack: a 0 written to the output register
	// would never be emitted, since the device only emits non-zero bytes.
	var out bytes.Buffer
	machine := newBootedVM(t, []byte{byte(BRK)}, frame, &out)
	assert(t, machine.WorkingDepth() == 1, "expected the quotient alone on the stack, got depth %d", machine.WorkingDepth())
	assert(t, machine.wst.peekByte(1) == 0, "expected division by zero to yield 0, got %d", machine.wst.peekByte(1))
}
