package vm

// depth is the fixed capacity of both stacks (spec.md §1, §3): 256 slots,
// addressed by an 8-bit top-of-stack index that wraps modulo 256 the same
// way the index type itself does.
const depth = 256

// WorkingStack is the byte-wide operand stack. top is the number of valid
// entries (0-255); the guard in exec.go keeps it from ever reaching depth,
// so pushByte/popByte never need to check bounds themselves - per spec.md
// §4.1, preconditions are enforced by the dispatcher from the arity table,
// not inside the stack operations.
type WorkingStack struct {
	data [depth]byte
	top  uint8
}

// Depth returns the number of bytes currently on the stack.
func (s *WorkingStack) Depth() int { return int(s.top) }

func (s *WorkingStack) pushByte(b byte) {
	s.data[s.top] = b
	s.top++
}

func (s *WorkingStack) popByte() byte {
	s.top--
	return s.data[s.top]
}

// peekByte reads the byte at offset o below the top without moving the
// stack pointer. o=1 is the current top, o=2 the one below it, and so on -
// the same 1-based offset original_source/cpu.c's wspeek8(c, o) uses
// (dat[ptr-o]).
func (s *WorkingStack) peekByte(o uint8) byte {
	return s.data[s.top-o]
}

// pushShort writes the high byte first, then the low byte - so the earlier
// push (high byte) ends up one slot deeper, matching spec.md §4.1's
// "push-short writes high byte then low byte".
func (s *WorkingStack) pushShort(v uint16) {
	s.pushByte(byte(v >> 8))
	s.pushByte(byte(v))
}

// popShort reads the low byte first (it's on top), then the high byte,
// recombining them high-byte-first - spec.md §4.1's "pop-short reads low
// byte then high byte so the earlier push-byte high-byte occupies the more
// significant position".
func (s *WorkingStack) popShort() uint16 {
	lo := s.popByte()
	hi := s.popByte()
	return uint16(hi)<<8 | uint16(lo)
}

// peekShort reads the short at 1-based offset o (bytes [top-o, top-o+1]),
// combined high-byte-first per spec.md §4.1 - matching cpu.c's wspeek16.
func (s *WorkingStack) peekShort(o uint8) uint16 {
	hi := s.data[s.top-o]
	lo := s.data[s.top-o+1]
	return uint16(hi)<<8 | uint16(lo)
}

// ReturnStack stores program pointers only (spec.md §3), pushed/popped by
// JSR/RTS.
type ReturnStack struct {
	data [depth]uint16
	top  uint8
}

func (s *ReturnStack) Depth() int { return int(s.top) }

func (s *ReturnStack) pushShort(v uint16) {
	s.data[s.top] = v
	s.top++
}

func (s *ReturnStack) popShort() uint16 {
	s.top--
	return s.data[s.top]
}
