package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strings"
	"unicode/utf8"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// ProbeError reports a probe command that exited unsuccessfully.
// It means the toolchain is missing or broken, so it is fatal for the run.
type ProbeError struct {
	ExitCode int
	Args     []string
	Stderr   []byte
}

func (e *ProbeError) Error() string {
	if utf8.Valid(e.Stderr) {
		return fmt.Sprintf("compiler failed with %d. args: %q\nstderr:\n%s", e.ExitCode, e.Args, e.Stderr)
	}

	return fmt.Sprintf("compiler failed with %d. args: %q\nstderr:\n%q", e.ExitCode, e.Args, e.Stderr)
}

type exitCoder interface {
	ExitCode() int
}

// Prober runs probe commands and extracts the include search list
type Prober struct {
	execCommand func(ctx context.Context, stderr io.Writer, name string, args ...string) Commander
}

// NewProber creates a prober that spawns the compiler as a child process.
// The child's stdout is discarded and its stderr captured.
func NewProber() *Prober {
	return &Prober{
		execCommand: func(ctx context.Context, stderr io.Writer, name string, args ...string) Commander {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stderr = stderr
			return cmd
		},
	}
}

// Probe runs key and returns the include directories the compiler reported,
// in the order it reported them.
func (p *Prober) Probe(ctx context.Context, key ProbeKey) ([]string, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("empty probe command")
	}

	var stderr bytes.Buffer
	c := p.execCommand(ctx, &stderr, key.Compiler(), key.Args()...)
	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}

		var ec exitCoder
		if errors.As(err, &ec) {
			return nil, &ProbeError{
				ExitCode: ec.ExitCode(),
				Args:     slices.Clone([]string(key)),
				Stderr:   stderr.Bytes(),
			}
		}

		return nil, fmt.Errorf("failed to run compiler probe %q: %w", []string(key), err)
	}

	return ParseIncludes(stderr.Bytes()), nil
}

// ParseIncludes extracts include directories from a compiler's verbose
// preprocessor diagnostics. Only lines starting with exactly one space name
// a directory; banners and search list markers never do.
func ParseIncludes(stderr []byte) []string {
	var includes []string
	for _, line := range strings.Split(string(stderr), "\n") {
		line = strings.TrimSuffix(line, "\r")

		// a lone space would name an empty directory
		if len(line) < 2 || line[0] != ' ' || line[1] == ' ' {
			continue
		}

		includes = append(includes, line[1:])
	}

	return includes
}
