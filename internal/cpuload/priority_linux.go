//go:build linux

package cpuload

import (
	"os"
	"syscall"

	"github.com/bc-dunia/burnrig/internal/config"
)

// lowerPriority renices the calling process so load generation never
// starves the orchestrator or the desktop.
func lowerPriority() error {
	return syscall.Setpriority(syscall.PRIO_PROCESS, 0, config.HelperNice)
}

func terminateProcess(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
