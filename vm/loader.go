package vm

import (
	"fmt"
	"os"
)

// Load reads the flat binary image at path into memory starting at address
// 0 (spec.md §6). Images larger than the 65536-byte address space are
// rejected outright rather than silently truncated. A failure here happens
// before boot ever runs, so it's reported as ErrMissingInput rather than a
// *VMError - there is no instruction counter yet.
func Load(path string, vm *VM) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ErrMissingInput{Path: path, Err: err}
	}
	if len(data) > memSize {
		return &ErrMissingInput{
			Path: path,
			Err:  fmt.Errorf("image is %d bytes, exceeds %d-byte address space", len(data), memSize),
		}
	}
	copy(vm.mem.data[:], data)
	return nil
}
