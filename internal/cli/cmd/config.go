package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/rfs/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage rfs configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var outFormat string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration after defaults and environment overrides
(RFS_PORT, RFS_HOST, RFS_WORKDIR, RFS_LOG_LEVEL, RFS_LOG_FILE, RFS_JOURNAL).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch outFormat {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case "yaml":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				_, err = out.Write(data)
				return err
			default:
				return fmt.Errorf("unsupported format: %s", outFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outFormat, "format", "f", "yaml", "output format (yaml or json)")
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cfg.SystemPaths.ActiveConfig

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("configuration already exists at %s\nUse --force to overwrite or 'rfsd config show' to view it", configPath)
			}

			defaults := config.DefaultConfig()
			GetZapLogger().Info("Initializing configuration", zap.String("config_path", configPath))
			if err := defaults.Save(configPath); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration initialized at: %s\n", configPath)
			fmt.Fprintf(out, "Working directory: %s\n", defaults.Server.WorkDir)
			fmt.Fprintf(out, "Journal: %s\n", defaults.Journal.Path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration and data paths",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			p := cfg.SystemPaths
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:  %s\n", p.ActiveConfig)
			fmt.Fprintf(out, "Data:    %s\n", p.DataDir)
			fmt.Fprintf(out, "Journal: %s\n", cfg.Journal.Path)
			fmt.Fprintf(out, "Logs:    %s\n", p.LogDir)
			fmt.Fprintf(out, "PID:     %s\n", cfg.Daemon.PIDFile)
		},
	}
}
