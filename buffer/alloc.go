package buffer

import "fmt"

// Allocator returns a zeroed block of exactly size bytes, or ErrOutOfMemory.
type Allocator func(size int) ([]byte, error)

// MakeAllocator is the default Allocator. A make that the runtime rejects
// (length out of range for the platform) is reported as ErrOutOfMemory.
func MakeAllocator(size int) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = fmt.Errorf("%w: %d bytes: %v", ErrOutOfMemory, size, r)
		}
	}()
	return make([]byte, size), nil
}
