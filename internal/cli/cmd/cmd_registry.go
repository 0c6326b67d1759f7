package cmd

import (
	"github.com/spf13/cobra"
)

// GetCommands returns the rfsd subcommands for registration
func GetCommands() []*cobra.Command {
	return []*cobra.Command{
		newStopCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		NewVersionCmd("rfsd"),
	}
}
