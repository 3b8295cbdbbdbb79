package vm

// Step runs one fetch/decode/execute cycle (spec.md §4.7) and returns a
// *VMError if the step failed. A non-nil error means this phase ends here -
// HALT is left clear, exactly as original_source/cpu.c's error() does by
// always returning 0 without touching the status byte (spec.md §7).
func (vm *VM) Step() error {
	instr := vm.mem.Fetch()

	if vm.literal > 0 {
		return vm.stepLiteral(instr)
	}
	return vm.stepOpcode(instr)
}

// stepLiteral treats instr as raw data: push it and decrement the literal
// counter. Per original_source/cpu.c's doliteral, this does NOT service
// devices - only a fully decoded opcode step does that.
func (vm *VM) stepLiteral(data byte) error {
	if vm.wst.Depth() >= 255 {
		return newStackOverflow(int(data), vm.counter)
	}
	vm.wst.pushByte(data)
	vm.literal--
	return nil
}

// stepOpcode decodes the flag bits and opcode field, applies the arity
// guard, performs conditional execution, dispatches, and services devices
// (spec.md §4.3, §4.4, §4.6, §4.7).
func (vm *VM) stepOpcode(instr byte) error {
	op := Opcode(instr & 0x1F)
	short := instr&0x20 != 0
	sign := instr&0x40 != 0
	cond := instr&0x80 != 0

	vm.status.set(FlagShort, short)
	vm.status.set(FlagSign, sign)
	vm.status.set(FlagCond, cond)

	table := int(op)
	if short {
		table = shortVariant(op)
	}

	a := arityTable[table]
	// The guard reads current depth before any conditional pop - per
	// spec.md §4.6's open question, this may under-count what the
	// predicate pop is about to take, and that inconsistency is observed
	// behavior, not smoothed over here (see DESIGN.md).
	if vm.wst.Depth() < int(a.consumed) {
		return newStackUnderflow(table, vm.counter)
	}
	if vm.wst.Depth()+int(a.produced)-int(a.consumed) >= 255 {
		return newStackOverflow(table, vm.counter)
	}

	run := true
	if cond {
		predicate := vm.wst.popByte()
		run = predicate != 0
	}

	if run {
		vm.dispatch(table)
	}

	for _, d := range vm.devices {
		d.Service(&vm.mem)
	}

	return nil
}

// dispatch executes the opcode at table index idx (0-31 base, 32-47 the
// SHORT-shifted stack/arithmetic/logic/compare range). A dense switch over
// the table index is preferred over a function-pointer array for
// predictable performance and exhaustive case checking, per spec.md §9's
// design-note guidance.
func (vm *VM) dispatch(idx int) {
	switch idx {
	case 0x00: // BRK
		vm.status.set(FlagHalt, true)
	case 0x01: // LIT
		vm.literal += vm.mem.Fetch()
	case 0x02, 0x03, 0x04, 0x05: // reserved
	case 0x06: // LDR
		addr := vm.wst.popShort()
		vm.wst.pushByte(vm.mem.ReadByte(addr))
	case 0x07: // STR
		addr := vm.wst.popShort()
		value := vm.wst.popByte()
		vm.mem.WriteByte(addr, value)
	case 0x08: // JMP
		vm.mem.pointer = vm.wst.popShort()
	case 0x09: // JSR
		vm.rst.pushShort(vm.mem.pointer)
		vm.mem.pointer = vm.wst.popShort()
	case 0x0A: // reserved
	case 0x0B: // RTS
		vm.mem.pointer = vm.rst.popShort()
	case 0x0C, 0x0D, 0x0E, 0x0F: // reserved

	case 0x10: // POP
		vm.wst.popByte()
	case 0x11: // DUP
		vm.wst.pushByte(vm.wst.peekByte(1))
	case 0x12: // SWP
		b, a := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(b)
		vm.wst.pushByte(a)
	case 0x13: // OVR
		vm.wst.pushByte(vm.wst.peekByte(2))
	case 0x14: // ROT
		c1, b, a := vm.wst.popByte(), vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(b)
		vm.wst.pushByte(c1)
		vm.wst.pushByte(a)
	case 0x15: // AND
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(a & b)
	case 0x16: // ORA
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(a | b)
	case 0x17: // ROL - shift, not rotate, despite the mnemonic
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(a << b)
	case 0x18: // ADD
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(b + a)
	case 0x19: // SUB
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(b - a)
	case 0x1A: // MUL
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(b * a)
	case 0x1B: // DIV - division by zero yields 0, it is not fatal (spec.md §7)
		a, b := vm.wst.popByte(), vm.wst.popByte()
		if a == 0 {
			vm.wst.pushByte(0)
		} else {
			vm.wst.pushByte(b / a)
		}
	case 0x1C: // EQU
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(boolByte(b == a))
	case 0x1D: // NEQ
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(boolByte(b != a))
	case 0x1E: // GTH
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(boolByte(b > a))
	case 0x1F: // LTH
		a, b := vm.wst.popByte(), vm.wst.popByte()
		vm.wst.pushByte(boolByte(b < a))

	case 0x20: // POP16
		vm.wst.popShort()
	case 0x21: // DUP16
		vm.wst.pushShort(vm.wst.peekShort(2))
	case 0x22: // SWP16
		b, a := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushShort(b)
		vm.wst.pushShort(a)
	case 0x23: // OVR16
		vm.wst.pushShort(vm.wst.peekShort(4))
	case 0x24: // ROT16
		c1, b, a := vm.wst.popShort(), vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushShort(b)
		vm.wst.pushShort(c1)
		vm.wst.pushShort(a)
	case 0x25: // AND16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushShort(a & b)
	case 0x26: // ORA16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushShort(a | b)
	case 0x27: // ROL16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushShort(a << b)
	case 0x28: // ADD16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushShort(b + a)
	case 0x29: // SUB16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushShort(b - a)
	case 0x2A: // MUL16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushShort(b * a)
	case 0x2B: // DIV16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		if a == 0 {
			vm.wst.pushShort(0)
		} else {
			vm.wst.pushShort(b / a)
		}
	case 0x2C: // EQU16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushByte(boolByte(b == a))
	case 0x2D: // NEQ16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushByte(boolByte(b != a))
	case 0x2E: // GTH16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushByte(boolByte(b > a))
	case 0x2F: // LTH16
		a, b := vm.wst.popShort(), vm.wst.popShort()
		vm.wst.pushByte(boolByte(b < a))
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
