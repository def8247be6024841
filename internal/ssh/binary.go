// Package ssh wraps the external OpenSSH client executable: locating and
// validating the binary, and spawning one pollable process per target.
package ssh

import (
	"fmt"
	"os/exec"
	"strings"
)

// DefaultBinary is the executable name resolved via PATH when no explicit
// path is configured.
const DefaultBinary = "ssh"

// Binary is a validated ssh executable
type Binary struct {
	Path    string // Absolute or PATH-resolved executable path
	Version string // First line of `ssh -V` output
}

// Discover resolves the default ssh executable from PATH and validates it
func Discover() (Binary, error) {
	return NewBinary(DefaultBinary)
}

// NewBinary validates that the executable at path is a compatible OpenSSH
// implementation. The check runs `<path> -V` and inspects its output; any
// incompatibility is returned as an error before a batch can run.
func NewBinary(path string) (Binary, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Binary{}, fmt.Errorf("ssh executable '%s' not found: %w", path, err)
	}

	// OpenSSH prints its version banner to stderr
	out, err := exec.Command(resolved, "-V").CombinedOutput()
	if err != nil {
		return Binary{}, fmt.Errorf("'%s -V' failed: %w", resolved, err)
	}

	version, err := parseVersion(string(out))
	if err != nil {
		return Binary{}, fmt.Errorf("'%s -V': %w", resolved, err)
	}

	return Binary{Path: resolved, Version: version}, nil
}

// parseVersion checks that version-banner output identifies an OpenSSH
// implementation and returns its first line.
func parseVersion(out string) (string, error) {
	banner := strings.TrimSpace(out)
	if banner == "" {
		return "", fmt.Errorf("no version output")
	}

	if !strings.Contains(strings.ToLower(banner), "openssh") {
		return "", fmt.Errorf("expecting OpenSSH implementation, got '%s'", firstLine(banner))
	}

	return firstLine(banner), nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
