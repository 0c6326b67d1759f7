// Package daemon detaches rfsd from its terminal and manages its PID file.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// EnvDaemon is set to "1" in the environment of a detached server.
const EnvDaemon = "RFSD_DAEMON"

// DetachFlag is removed from the arguments of the re-executed process.
const DetachFlag = "--detach"

// ErrNotRunning is returned by Stop when no live server owns the PID file.
var ErrNotRunning = errors.New("server is not running")

// Daemonizer starts a detached copy of the current program.
type Daemonizer struct {
	// LogFile receives the child's stdout and stderr.
	LogFile string
	Logger  *zap.Logger
}

// NewDaemonizer creates a daemonizer writing child output to logFile.
func NewDaemonizer(logFile string, logger *zap.Logger) *Daemonizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daemonizer{LogFile: logFile, Logger: logger}
}

// State describes the process recorded in a PID file.
type State struct {
	PID     int
	Running bool
	// Stale is set when the PID file names a process that is gone.
	Stale bool
}

// IsRunningAsDaemon reports whether this process was started by Daemonize.
func IsRunningAsDaemon() bool {
	return os.Getenv(EnvDaemon) == "1"
}

// FilterArgs drops every form of the detach flag so the child does not
// detach again.
func FilterArgs(args []string) []string {
	filtered := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == DetachFlag || strings.HasPrefix(arg, DetachFlag+"=") {
			continue
		}
		filtered = append(filtered, arg)
	}
	return filtered
}

// WritePIDFile records pid at path, creating its directory.
func WritePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// ReadPIDFile returns the pid stored at path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// RemovePIDFile deletes path if it still names pid.
func RemovePIDFile(path string, pid int) error {
	current, err := ReadPIDFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if current != pid {
		return nil
	}
	return os.Remove(path)
}

// Status inspects the PID file. A missing file means not running.
func Status(pidFile string) (State, error) {
	pid, err := ReadPIDFile(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, err
	}
	if !processAlive(pid) {
		return State{PID: pid, Stale: true}, nil
	}
	return State{PID: pid, Running: true}, nil
}

// Stop asks the recorded server to shut down and removes the PID file.
func Stop(pidFile string) (int, error) {
	st, err := Status(pidFile)
	if err != nil {
		return 0, err
	}
	if !st.Running {
		if st.Stale {
			os.Remove(pidFile)
		}
		return st.PID, ErrNotRunning
	}
	if err := terminate(st.PID); err != nil {
		return st.PID, fmt.Errorf("failed to signal process %d: %w", st.PID, err)
	}
	if err := os.Remove(pidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return st.PID, fmt.Errorf("failed to remove pid file: %w", err)
	}
	return st.PID, nil
}

// Daemonize re-executes executable with args, minus the detach flag, in the
// background and records its PID in pidFile.
func (d *Daemonizer) Daemonize(executable string, args []string, workDir, pidFile string) (int, error) {
	if st, err := Status(pidFile); err == nil && st.Running {
		return st.PID, fmt.Errorf("server already running with PID %d", st.PID)
	}

	if err := os.MkdirAll(filepath.Dir(d.LogFile), 0755); err != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", err)
	}
	logF, err := os.OpenFile(d.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logF.Close()

	filtered := FilterArgs(args)
	d.Logger.Debug("Starting daemon process",
		zap.String("executable", executable),
		zap.Strings("args", filtered))

	cmd := newDetachedCommand(executable, filtered)
	cmd.Dir = workDir
	cmd.Stdin = nil
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.Env = append(os.Environ(), EnvDaemon+"=1")

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}

	pid := cmd.Process.Pid
	if err := WritePIDFile(pidFile, pid); err != nil {
		return pid, err
	}
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release daemon process: %w", err)
	}

	d.Logger.Info("Daemon started",
		zap.Int("pid", pid),
		zap.String("pid_file", pidFile),
		zap.String("log_file", d.LogFile))
	return pid, nil
}
