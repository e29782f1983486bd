//go:build windows

package worktree

import (
	"os/exec"
)

// copyDirPreserving copies a directory using robocopy, preserving symlinks,
// permissions, timestamps, and all file attributes.
func copyDirPreserving(src, dest string) error {
	// /E copies subdirectories including empty ones, /COPYALL copies all
	// file info, /SL copies symlinks as links, /R:0 /W:0 disable retries.
	cmd := exec.Command("robocopy", src, dest, "/E", "/COPYALL", "/SL", "/R:0", "/W:0")
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() < 8 {
			return nil // robocopy's own success/warning range
		}
		return err
	}
	return nil
}
