package vm

import (
	"bufio"
	"io"
	"os"
)

// Status is the CPU flags bitfield (spec.md §3). SHORT/SIGN/COND are set by
// the decoder fresh for each instruction; HALT is sticky until the next
// boot phase.
type Status byte

const (
	FlagHalt  Status = 0x01
	FlagShort Status = 0x02
	FlagSign  Status = 0x04
	FlagCond  Status = 0x08
)

func (s Status) has(f Status) bool { return s&f != 0 }

func (s *Status) set(f Status, on bool) {
	if on {
		*s |= f
	} else {
		*s &^= f
	}
}

// VM is the whole machine: two stacks, a flat memory, and the small bundle
// of CPU state the fetch/decode/execute loop threads through. Every VM owns
// its state exclusively (spec.md §5) - nothing here is package-global, so
// multiple machines can coexist, unlike the teacher's original global-CPU
// design note in spec.md §9.
type VM struct {
	wst WorkingStack
	rst ReturnStack
	mem Memory

	status  Status
	counter uint16
	literal uint8

	resetVector uint16
	frameVector uint16
	errorVector uint16

	devices []Device

	stdout *bufio.Writer
}

// New builds a VM wired to stdout for its output device. Use NewWithOutput
// to redirect the device byte elsewhere (tests do this to capture output).
func New() *VM {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput builds a VM whose output-register device writes to w.
func NewWithOutput(w io.Writer) *VM {
	vm := &VM{stdout: bufio.NewWriter(w)}
	vm.devices = []Device{newOutputDevice(vm.stdout)}
	return vm
}

// Memory exposes the flat address space for the loader and for tests that
// want to poke at program images directly.
func (vm *VM) Memory() *Memory { return &vm.mem }

// Counter is the monotonic count of instructions evaluated since boot
// (spec.md §3) - informational only.
func (vm *VM) Counter() uint16 { return vm.counter }

// Halted reports whether the HALT flag is currently set.
func (vm *VM) Halted() bool { return vm.status.has(FlagHalt) }

// WorkingDepth and ReturnDepth expose stack depth for tracing/testing.
func (vm *VM) WorkingDepth() int { return vm.wst.Depth() }
func (vm *VM) ReturnDepth() int  { return vm.rst.Depth() }

// flush drains any buffered device output. Boot calls this once both phases
// have run so output isn't lost if the process exits immediately after.
func (vm *VM) flush() {
	if vm.stdout != nil {
		vm.stdout.Flush()
	}
}

// reset zeroes all CPU state (spec.md §4.8). Devices and the output writer
// are left alone - they're host-side plumbing, not machine state.
func (vm *VM) reset() {
	vm.wst = WorkingStack{}
	vm.rst = ReturnStack{}
	vm.status = 0
	vm.counter = 0
	vm.literal = 0
	// mem.data is deliberately NOT cleared: it holds the loaded program
	// image, which boot's reset phase is about to execute.
	vm.mem.pointer = 0
}

// cacheVectors reads the three big-endian entry vectors from the top of
// memory (spec.md §3, §4.8). Must run after the program image is loaded.
func (vm *VM) cacheVectors() {
	vm.resetVector = vm.mem.PeekShort(ResetVectorAddr)
	vm.frameVector = vm.mem.PeekShort(FrameVectorAddr)
	vm.errorVector = vm.mem.PeekShort(ErrorVectorAddr)
}

// ErrorVector returns the cached error vector. It is read at boot but never
// automatically dispatched to (spec.md §7) - it exists for future use.
func (vm *VM) ErrorVector() uint16 { return vm.errorVector }
