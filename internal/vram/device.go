// Package vram holds memory usage at a configured fraction of a
// device's capacity with a target-seeking allocation controller.
// Backends exist for GPU memory (smi tooling plus helper processes)
// and host memory (the fallback when no GPU tooling is present).
package vram

// Chunk is one held allocation, releasable exactly once.
type Chunk interface {
	Size() uint64
	Release()
}

// Device abstracts the memory pool the controller targets.
type Device interface {
	// Name identifies the device in logs and metrics.
	Name() string

	// MemInfo returns the pool's current free and total bytes.
	MemInfo() (free, total uint64, err error)

	// Alloc obtains and commits one chunk. A failed allocation is an
	// expected condition, not a test failure.
	Alloc(bytes uint64) (Chunk, error)

	// Reclaim gives freed memory back to the pool (cache drop, OS
	// return). Called after shrinking and at release-all.
	Reclaim()
}
