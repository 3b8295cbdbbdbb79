package vm

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Boot zeroes CPU state, caches the three entry vectors, then runs the
// reset phase to HALT followed by the frame phase to HALT (spec.md §4.8).
// It returns the error (if any) that ended whichever phase failed to reach
// HALT cleanly - a fatal condition only ends the phase it occurred in, per
// spec.md §7, so the frame phase still runs even if reset errored.
//
// The garbage collector is disabled for the duration: memory is a single
// fixed-size array allocated once, and the tight fetch/decode/execute loop
// below has no allocations of its own to collect.
func (vm *VM) Boot() error {
	defer suspendGC()()

	vm.reset()
	vm.cacheVectors()
	defer vm.flush()

	vm.mem.pointer = vm.resetVector
	vm.status.set(FlagHalt, false)
	resetErr := vm.runPhase()

	vm.mem.pointer = vm.frameVector
	vm.status.set(FlagHalt, false)
	frameErr := vm.runPhase()

	if frameErr != nil {
		return frameErr
	}
	return resetErr
}

// runPhase steps until HALT is set or a step fails.
func (vm *VM) runPhase() error {
	for !vm.status.has(FlagHalt) {
		if err := vm.Step(); err != nil {
			return err
		}
		vm.counter++
	}
	return nil
}

// BootTrace behaves like Boot but writes one diagnostic line per step to
// out: phase, program pointer, the raw instruction byte, and the resulting
// stack depths. This is an EXPANSION-only ergonomic surface (SPEC_FULL.md
// §10/§12) grounded on the teacher's interactive single-step debug driver
// (vm/exec.go's ExecProgramDebugMode) simplified to non-interactive
// printing - it changes no VM behavior.
func (vm *VM) BootTrace(out io.Writer) error {
	defer suspendGC()()

	vm.reset()
	vm.cacheVectors()
	defer vm.flush()

	vm.mem.pointer = vm.resetVector
	vm.status.set(FlagHalt, false)
	resetErr := vm.runPhaseTraced(out, "reset")

	vm.mem.pointer = vm.frameVector
	vm.status.set(FlagHalt, false)
	frameErr := vm.runPhaseTraced(out, "frame")

	if frameErr != nil {
		return frameErr
	}
	return resetErr
}

func (vm *VM) runPhaseTraced(out io.Writer, phase string) error {
	for !vm.status.has(FlagHalt) {
		pc := vm.mem.pointer
		instr := vm.mem.data[pc]
		err := vm.Step()
		fmt.Fprintf(out, "%-5s pc=%04x instr=%02x wst=%d rst=%d counter=%d\n",
			phase, pc, instr, vm.wst.Depth(), vm.rst.Depth(), vm.counter)
		if err != nil {
			return err
		}
		vm.counter++
	}
	return nil
}

// suspendGC disables the garbage collector and returns a func that restores
// whatever percentage was previously in effect. Grounded on the teacher's
// RunProgram, which does the same around its own execution loop.
func suspendGC() func() {
	prev := debug.SetGCPercent(-1)
	return func() { debug.SetGCPercent(prev) }
}
