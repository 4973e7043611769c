//go:build !linux

package cpuload

import "os"

func lowerPriority() error { return nil }

func terminateProcess(p *os.Process) error {
	return p.Kill()
}
