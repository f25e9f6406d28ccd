package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// serverBinaryName is the sibling executable xyprissctl forwards to. It is
// looked up next to xyprissctl's own executable first, then on PATH, so a
// packaged install (both binaries copied into the same bin/ directory)
// works without requiring PATH configuration.
const serverBinaryName = "xyprissd"

// forwardToServer execs the xyprissd binary with args, inheriting stdio, and
// exits this process with the child's exit code once it finishes.
func forwardToServer(args []string) error {
	bin, err := resolveServerBinary()
	if err != nil {
		return err
	}

	child := exec.Command(bin, args...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	if err := child.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("xyprissctl: launch %s: %w", serverBinaryName, err)
	}
	return nil
}

func resolveServerBinary() (string, error) {
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), serverBinaryName)
		if _, statErr := os.Stat(sibling); statErr == nil {
			return sibling, nil
		}
	}

	if path, err := exec.LookPath(serverBinaryName); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("xyprissctl: %s not found next to xyprissctl or on PATH", serverBinaryName)
}
