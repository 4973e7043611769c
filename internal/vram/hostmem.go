package vram

import (
	"errors"
	"runtime/debug"

	"github.com/shirou/gopsutil/v3/mem"
)

// HostDevice targets host RAM. It is the backend when no GPU tooling
// is detected. Chunks are touched byte slices so every page is
// actually committed, and Reclaim returns freed pages to the OS.
type HostDevice struct{}

// Name identifies the host pool.
func (HostDevice) Name() string { return "host-memory" }

// MemInfo reads available and total host memory.
func (HostDevice) MemInfo() (free, total uint64, err error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return vm.Available, vm.Total, nil
}

// allocHeadroom is kept free so a grow step can never push the host
// into the OOM killer's sights; the runtime cannot survive a failed
// make the way a device allocator returns an error.
const allocHeadroom = 256 * mib

// Alloc commits one touched byte slice.
func (d HostDevice) Alloc(bytes uint64) (Chunk, error) {
	if bytes == 0 {
		return nil, errors.New("zero-length allocation")
	}
	avail, _, err := d.MemInfo()
	if err != nil {
		return nil, err
	}
	if bytes+allocHeadroom > avail {
		return nil, errors.New("insufficient free host memory")
	}
	buf := make([]byte, bytes)
	// Touch one byte per page so the kernel commits the memory
	// instead of lazily mapping zero pages.
	for i := 0; i < len(buf); i += 4096 {
		buf[i] = 1
	}
	return &hostChunk{buf: buf}, nil
}

// Reclaim returns freed heap pages to the OS.
func (HostDevice) Reclaim() {
	debug.FreeOSMemory()
}

type hostChunk struct {
	buf []byte
}

func (c *hostChunk) Size() uint64 { return uint64(len(c.buf)) }

func (c *hostChunk) Release() { c.buf = nil }
