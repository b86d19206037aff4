package domain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner runs a local executable. Lookups that shell out (legacy
// whois, openssl) go through it so tests never touch real binaries.
type CommandRunner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	MaxOutputBytes int
}

func (r ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("command not found: %s: %w", name, exec.ErrNotFound)
	}

	// #nosec G204 -- name is a fixed binary, args are validated domain names.
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if r.MaxOutputBytes > 0 && len(out) > r.MaxOutputBytes {
		out = out[:r.MaxOutputBytes]
	}
	if err != nil {
		// whois exits non-zero for some registries while still printing a
		// usable answer.
		if len(out) > 0 {
			return out, nil
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func commandLine(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
