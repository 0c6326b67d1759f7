package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdpkg "github.com/berrythewa/rfs/internal/cli/cmd"
	"github.com/berrythewa/rfs/internal/common"
	"github.com/berrythewa/rfs/internal/config"
	"github.com/berrythewa/rfs/internal/daemon"
	"github.com/berrythewa/rfs/internal/server"
	"github.com/berrythewa/rfs/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Flags that apply to all rfsd commands
	logLevel string
	cfgFile  string

	// Flags for running the server
	detach  bool
	port    int
	workDir string

	// The loaded configuration
	cfg *config.Config

	// Logger instance
	logger    *zap.Logger
	logCloser func() error

	// Version information - set by main
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "none"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "rfsd",
	Short: "rfsd serves a directory to rfs clients",
	Long: `rfsd is a remote file server. It answers pwd, dir, cd, get and put
requests from rfs clients, one connection at a time.

Running rfsd without any commands starts the server in the foreground.
Use --detach to run it in the background.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

// persistentPreRun loads configuration and sets up logging. It is attached
// to RootCmd in init to avoid an initialization cycle.
func persistentPreRun(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if workDir != "" {
		cfg.Server.WorkDir = workDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cmd == RootCmd {
		logger, err = newServerLogger(cfg.Log)
	} else {
		logger, err = common.NewCLILogger(logLevel == "debug", false)
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Debug("Configuration loaded",
		zap.String("config", cfg.SystemPaths.ActiveConfig),
		zap.String("addr", cfg.ListenAddr()),
		zap.String("workdir", cfg.Server.WorkDir))

	cmdpkg.SetConfig(cfg)
	cmdpkg.SetZapLogger(logger)
	return nil
}

// newServerLogger logs to the configured file and, in the foreground, to
// stderr as well.
func newServerLogger(lc config.LogConfig) (*zap.Logger, error) {
	fileLogger, closer, err := common.NewLogger(lc)
	if err != nil {
		return nil, err
	}
	logCloser = closer.Close

	if daemon.IsRunningAsDaemon() || lc.File == "" {
		return fileLogger, nil
	}
	console := common.NewWriterLogger(config.LogConfig{Level: lc.Level, Format: "console"}, os.Stderr)
	return zap.New(zapcore.NewTee(fileLogger.Core(), console.Core())), nil
}

// runServer runs rfsd until it receives SIGINT or SIGTERM.
func runServer(ctx context.Context) error {
	if detach {
		return detachServer()
	}

	var journal storage.Recorder
	if cfg.Journal.Enabled {
		j, err := storage.NewJournal(storage.JournalConfig{
			DBPath: cfg.Journal.Path,
			Keep:   cfg.Journal.Keep,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		logger.Debug("Journal enabled", zap.String("path", j.Path()))
		journal = j
	}

	srv, err := server.New(server.Options{
		Addr:    cfg.ListenAddr(),
		WorkDir: cfg.Server.WorkDir,
		Limits:  cfg.Limits(),
		Journal: journal,
	}, logger)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	pid := os.Getpid()
	if err := daemon.WritePIDFile(cfg.Daemon.PIDFile, pid); err != nil {
		logger.Warn("Failed to write PID file", zap.Error(err))
	}
	defer daemon.RemovePIDFile(cfg.Daemon.PIDFile, pid)

	stopControl := startControl(cfg.Daemon.Socket, srv)
	defer stopControl()

	stop := setupSignalHandlers(srv)
	defer stop()

	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Serve(ctx)
}

// setupSignalHandlers closes srv on SIGINT or SIGTERM. The returned func
// stops listening for signals.
func setupSignalHandlers(srv *server.Server) func() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-c:
			logger.Info("Shutting down", zap.String("signal", sig.String()))
			srv.Close()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(c)
		close(done)
	}
}

// cleanup flushes and closes the logger.
func cleanup() {
	if logger != nil {
		logger.Sync()
	}
	if logCloser != nil {
		if err := logCloser(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", err)
		}
	}
}

// Execute runs rfsd. It is called by main.main().
func Execute() {
	err := RootCmd.Execute()
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersionInfo sets the version information used by the version command
func SetVersionInfo(version, buildTime, commit string) {
	Version = version
	BuildTime = buildTime
	Commit = commit
	cmdpkg.SetVersionInfo(version, buildTime, commit)
}

// AddCommand adds a command to the root command
func AddCommand(cmd *cobra.Command) {
	RootCmd.AddCommand(cmd)
}

func init() {
	RootCmd.PersistentPreRunE = persistentPreRun

	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/rfs/config.yaml)")

	RootCmd.Flags().BoolVar(&detach, "detach", false, "detach from terminal and run in background")
	RootCmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "TCP port to listen on")
	RootCmd.Flags().StringVarP(&workDir, "workdir", "w", "", "initial working directory (default /tmp)")
}
