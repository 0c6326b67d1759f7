package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/rfs/internal/daemon"
	"github.com/berrythewa/rfs/internal/ipc"
	"github.com/berrythewa/rfs/internal/server"
)

const controlTimeout = 2 * time.Second

func control(command string) (*ipc.Response, error) {
	resp, err := ipc.SendRequest(cfg.Daemon.Socket, &ipc.Request{Command: command}, controlTimeout)
	if err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, errors.New(resp.Message)
	}
	return resp, nil
}

// ping reports whether the server behind the control socket answers.
func ping() error {
	_, err := control(ipc.CmdPing)
	return err
}

// queryStats asks a running server for its counters over the control socket.
func queryStats() (*server.Stats, error) {
	resp, err := control(ipc.CmdStatus)
	if err != nil {
		return nil, err
	}
	var st server.Stats
	if err := resp.Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running rfsd",
		Long: `Send SIGTERM to the server recorded in the PID file. The server
finishes the connection it is serving, then exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pidFile := cfg.Daemon.PIDFile
			GetZapLogger().Debug("Stopping server", zap.String("pid_file", pidFile))

			pid, err := daemon.Stop(pidFile)
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "rfsd is not running")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to stop server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rfsd stopped (PID: %d)\n", pid)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether rfsd is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := daemon.Status(cfg.Daemon.PIDFile)
			if err != nil {
				return fmt.Errorf("failed to get server status: %w", err)
			}

			state := "stopped"
			var stats *server.Stats
			if st.Running {
				state = "running"
				if err := ping(); err != nil {
					GetZapLogger().Debug("Control socket unavailable", zap.Error(err))
				} else if stats, err = queryStats(); err != nil {
					GetZapLogger().Debug("Failed to query server stats", zap.Error(err))
				}
			}
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				return enc.Encode(map[string]interface{}{
					"status": state,
					"pid":    st.PID,
					"addr":   cfg.ListenAddr(),
					"stale":  st.Stale,
					"stats":  stats,
				})
			}

			fmt.Fprintf(out, "Status: %s\n", state)
			if st.Running {
				fmt.Fprintf(out, "PID: %d\n", st.PID)
				fmt.Fprintf(out, "Address: %s\n", cfg.ListenAddr())
				if stats != nil {
					fmt.Fprintf(out, "Working directory: %s\n", stats.Workdir)
					fmt.Fprintf(out, "Uptime: %s\n", time.Since(stats.Started).Round(time.Second))
					fmt.Fprintf(out, "Requests: %d served, %d failed, %d dropped\n",
						stats.Served, stats.Failed, stats.Dropped)
				}
			} else if st.Stale {
				fmt.Fprintf(out, "Stale PID file: %s (PID %d)\n", cfg.Daemon.PIDFile, st.PID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output status as JSON")
	return cmd
}
