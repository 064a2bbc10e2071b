// Package util collects small filesystem and formatting helpers shared
// across cdist's packages.
package util

import (
	"fmt"
	"os"
	"os/exec"
)

// RemoveAll removes a directory tree, falling back to `rm -rf` if the
// in-process removal fails (stale NFS handles, permission quirks on
// promoted cache trees).
func RemoveAll(path string) error {
	if err := os.RemoveAll(path); err == nil {
		return nil
	}
	return exec.Command("rm", "-rf", path).Run()
}

// FormatDuration renders seconds as a compact "1h2m3s"-style string, used in
// the orchestrator's per-host summary log line.
func FormatDuration(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	seconds = seconds % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}
