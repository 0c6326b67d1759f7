// File: internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/berrythewa/rfs/internal/protocol"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the well-known rfs port.
const DefaultPort = 8080

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir      string // Base directory for config files
	ActiveConfig string // Path to the config file
	DataDir      string // Directory for application data
	JournalFile  string // Path to the request journal
	LogDir       string // Directory for log files
	RunDir       string // Directory for the PID file
}

// Config holds all application configuration
type Config struct {
	// System paths, resolved at load time
	SystemPaths ConfigPaths `yaml:"-"`

	// Server (rfsd) configuration
	Server ServerConfig `yaml:"server"`

	// Client (rfs) configuration
	Client ClientConfig `yaml:"client"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Request journal configuration
	Journal JournalConfig `yaml:"journal"`

	// Daemon process configuration
	Daemon DaemonConfig `yaml:"daemon"`
}

// ServerConfig holds configuration for the server
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	WorkDir      string `yaml:"work_dir"`
	MaxArgs      uint32 `yaml:"max_args"`
	MaxArgLength uint32 `yaml:"max_arg_length"`
	MaxPayload   uint32 `yaml:"max_payload"`
}

// ClientConfig holds configuration for the client
type ClientConfig struct {
	Port        int           `yaml:"port"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// MaxPayload bounds the file data a get accepts and a put sends.
	MaxPayload uint32 `yaml:"max_payload"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
	File   string `yaml:"file"`   // empty logs to stderr
}

// JournalConfig holds request journal configuration
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Keep    int    `yaml:"keep"`
}

// DaemonConfig holds daemonization settings
type DaemonConfig struct {
	PIDFile string `yaml:"pid_file"`
	// Socket is the local control socket of a running server.
	Socket string `yaml:"socket"`
}

// Overridable for tests.
var (
	userConfigDir = os.UserConfigDir
	userHomeDir   = os.UserHomeDir
)

// GetConfigPaths returns the platform-specific configuration paths
func GetConfigPaths() (*ConfigPaths, error) {
	baseDir := os.Getenv("RFS_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := userConfigDir()
		if err != nil {
			return nil, err
		}
		switch runtime.GOOS {
		case "darwin":
			baseDir = filepath.Join(configDir, "com.berrythewa.rfs")
		default:
			baseDir = filepath.Join(configDir, "rfs")
		}
	}

	dataDir := os.Getenv("RFS_DATA_DIR")
	if dataDir == "" {
		homeDir, err := userHomeDir()
		if err != nil {
			return nil, err
		}
		switch runtime.GOOS {
		case "darwin":
			dataDir = filepath.Join(homeDir, "Library", "Application Support", "rfs")
		default:
			if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
				dataDir = filepath.Join(xdgDataHome, "rfs")
			} else {
				dataDir = filepath.Join(homeDir, ".rfs")
			}
		}
	}

	return &ConfigPaths{
		BaseDir:      baseDir,
		ActiveConfig: filepath.Join(baseDir, "config.yaml"),
		DataDir:      dataDir,
		JournalFile:  filepath.Join(dataDir, "journal.db"),
		LogDir:       filepath.Join(dataDir, "logs"),
		RunDir:       filepath.Join(dataDir, "run"),
	}, nil
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	paths, err := GetConfigPaths()
	if err != nil {
		tmp := filepath.Join(os.TempDir(), "rfs")
		paths = &ConfigPaths{
			BaseDir:      tmp,
			ActiveConfig: filepath.Join(tmp, "config.yaml"),
			DataDir:      tmp,
			JournalFile:  filepath.Join(tmp, "journal.db"),
			LogDir:       tmp,
			RunDir:       tmp,
		}
	}

	return &Config{
		SystemPaths: *paths,
		Server: ServerConfig{
			Port:         DefaultPort,
			WorkDir:      "/tmp",
			MaxArgs:      protocol.DefaultMaxArgs,
			MaxArgLength: protocol.DefaultMaxArgLen,
			MaxPayload:   protocol.DefaultMaxPayload,
		},
		Client: ClientConfig{
			Port:        DefaultPort,
			DialTimeout: 10 * time.Second,
			MaxPayload:  protocol.DefaultMaxPayload,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(paths.LogDir, "rfsd.log"),
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    paths.JournalFile,
			Keep:    1000,
		},
		Daemon: DaemonConfig{
			PIDFile: filepath.Join(paths.RunDir, "rfsd.pid"),
			Socket:  filepath.Join(paths.RunDir, "rfsd.sock"),
		},
	}
}

// Load loads the configuration from the specified file or creates default if not exists
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		var err error
		configPath, err = GetActiveConfigPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg := DefaultConfig()
		cfg.SystemPaths.ActiveConfig = configPath
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		overrideFromEnv(cfg)
		return cfg, cfg.Validate()
	}

	// Unset keys keep their defaults.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.SystemPaths.ActiveConfig = configPath

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Client.Port < 1 || c.Client.Port > 65535 {
		return fmt.Errorf("invalid client port %d", c.Client.Port)
	}
	if c.Server.WorkDir == "" {
		return fmt.Errorf("server work_dir must be set")
	}
	if c.Server.MaxArgs < protocol.MaxRequestArgs {
		return fmt.Errorf("server max_args must be at least %d", protocol.MaxRequestArgs)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal path must be set when the journal is enabled")
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	return nil
}

// Limits returns the frame limits the server enforces.
func (c *Config) Limits() protocol.Limits {
	return protocol.Limits{
		MaxArgs:    c.Server.MaxArgs,
		MaxArgLen:  c.Server.MaxArgLength,
		MaxPayload: c.Server.MaxPayload,
	}
}

// ListenAddr returns the host:port the server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetActiveConfigPath returns the path to the currently active config
func GetActiveConfigPath() (string, error) {
	paths, err := GetConfigPaths()
	if err != nil {
		return "", err
	}
	return paths.ActiveConfig, nil
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(config *Config) {
	if val := os.Getenv("RFS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.Server.Port = port
			config.Client.Port = port
		}
	}
	if val := os.Getenv("RFS_HOST"); val != "" {
		config.Server.Host = val
	}
	if val := os.Getenv("RFS_WORKDIR"); val != "" {
		config.Server.WorkDir = val
	}
	if val := os.Getenv("RFS_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val, ok := os.LookupEnv("RFS_LOG_FILE"); ok {
		config.Log.File = val
	}
	if val := os.Getenv("RFS_JOURNAL"); val != "" {
		config.Journal.Enabled = val == "true"
	}
}
