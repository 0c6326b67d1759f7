// Package lister produces the text body of a dir response.
package lister

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Mode selects which directory entries a listing includes.
type Mode int

const (
	ModeAll Mode = iota
	ModeDirectories
	ModeFiles
)

// ParseMode maps the optional dir argument to a Mode. Anything unrecognised
// lists every entry.
func ParseMode(arg string) Mode {
	switch arg {
	case "directory":
		return ModeDirectories
	case "files":
		return ModeFiles
	default:
		return ModeAll
	}
}

func (m Mode) String() string {
	switch m {
	case ModeDirectories:
		return "directory"
	case ModeFiles:
		return "files"
	default:
		return "all"
	}
}

// Lister lists the contents of dir as newline separated text.
type Lister interface {
	List(ctx context.Context, dir string, mode Mode) (string, error)
}

// ShellLister runs ls through a shell in the target directory.
type ShellLister struct {
	// Shell defaults to /bin/sh.
	Shell string
}

// NewShellLister returns a ShellLister using /bin/sh.
func NewShellLister() *ShellLister {
	return &ShellLister{Shell: "/bin/sh"}
}

// Script returns the shell pipeline used for mode.
func Script(mode Mode) string {
	switch mode {
	case ModeDirectories:
		return "ls -a -d */"
	case ModeFiles:
		return "ls -a -p | grep -v /"
	default:
		return "ls -a"
	}
}

// List runs the listing for mode in dir and returns its output with the
// trailing newline removed.
func (l *ShellLister) List(ctx context.Context, dir string, mode Mode) (string, error) {
	shell := l.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", Script(mode))
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// grep exits 1 when nothing matched, which is an empty listing.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && mode == ModeFiles && exitErr.ExitCode() == 1 && stderr.Len() == 0 {
			return "", nil
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}

	return strings.TrimSuffix(stdout.String(), "\n"), nil
}
