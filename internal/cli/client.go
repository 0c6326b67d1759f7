package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/berrythewa/rfs/internal/client"
	"github.com/berrythewa/rfs/internal/common"
	"github.com/berrythewa/rfs/internal/config"
	"github.com/berrythewa/rfs/internal/protocol"
	"github.com/spf13/cobra"
)

// Client flags
var (
	clientCfgFile string
	clientPort    int
	dialTimeout   time.Duration
	verbose       bool
	quiet         bool
)

// ClientCmd is the rfs command line client.
var ClientCmd = &cobra.Command{
	Use:   "rfs <server> <command> [argument1 [argument2]]",
	Short: "rfs runs a single command on an rfsd server",
	Long: `rfs sends one command to an rfsd server and prints the reply.

Commands:
  pwd                          print the server's working directory
  dir [directory|files]        list the working directory
  cd <path>                    change the server's working directory
  get <remote> [local]         download a file
  put <local> [remote]         upload a file`,
	Example: `  rfs fileserver pwd
  rfs 10.0.0.5 get notes.txt /tmp/notes.txt
  rfs --port 9000 fileserver put report.pdf`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, command, rest := args[0], args[1], args[2:]
		if err := client.ValidateArgs(command, rest); err != nil {
			return err
		}

		cfg, err := config.Load(clientCfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log, err := common.NewCLILogger(verbose, quiet)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer log.Sync()

		c := client.New(cfg.Client, log)
		if cmd.Flags().Changed("port") {
			c.Port = clientPort
		}
		if cmd.Flags().Changed("timeout") {
			c.DialTimeout = dialTimeout
		}

		res, err := c.SendCommand(cmd.Context(), server, command, rest...)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func printResult(out io.Writer, res *client.Result) {
	if res.Command == protocol.CmdGet {
		if !quiet {
			fmt.Fprintf(out, "%s: %d bytes\n", res.LocalPath, res.Bytes)
		}
		return
	}
	fmt.Fprintln(out, res.Text)
}

// ExecuteClient runs rfs. It is called by main.main() of the client binary.
func ExecuteClient() {
	if err := ClientCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rfs: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	ClientCmd.Flags().StringVar(&clientCfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/rfs/config.yaml)")
	ClientCmd.Flags().IntVarP(&clientPort, "port", "p", config.DefaultPort, "server port")
	ClientCmd.Flags().DurationVar(&dialTimeout, "timeout", 10*time.Second, "connection timeout")
	ClientCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log protocol details")
	ClientCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print command output")

	// Remote arguments such as "-rf" must not be parsed as flags.
	ClientCmd.Flags().SetInterspersed(false)
}
