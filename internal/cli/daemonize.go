package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/berrythewa/rfs/internal/daemon"
)

// detachServer re-executes rfsd in the background and returns once the
// child is started.
func detachServer() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(cfg.SystemPaths.LogDir, "rfsd.log")
	}

	d := daemon.NewDaemonizer(logFile, logger)
	pid, err := d.Daemonize(executable, os.Args[1:], cwd, cfg.Daemon.PIDFile)
	if err != nil {
		return fmt.Errorf("failed to daemonize: %w", err)
	}

	fmt.Printf("rfsd started in background (PID: %d)\n", pid)
	fmt.Printf("Logs: %s\n", logFile)
	return nil
}
