// Package storage verifies removable storage by repeatedly copying a
// sample file to each mounted target and comparing checksums.
package storage

import (
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// removablePrefixes are the mount roots desktop environments use for
// removable media.
var removablePrefixes = []string{"/media/", "/run/media/"}

// DetectTargets enumerates mounted removable-media filesystems.
func DetectTargets() ([]string, error) {
	parts, err := disk.Partitions(false)
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, p := range parts {
		if isRemovableMount(p.Mountpoint) {
			targets = append(targets, p.Mountpoint)
		}
	}
	return targets, nil
}

func isRemovableMount(mount string) bool {
	for _, prefix := range removablePrefixes {
		if strings.HasPrefix(mount, prefix) {
			return true
		}
	}
	return false
}
