package cli

import (
	cmdpkg "github.com/berrythewa/rfs/internal/cli/cmd"
)

func init() {
	for _, command := range cmdpkg.GetCommands() {
		AddCommand(command)
	}
	ClientCmd.AddCommand(cmdpkg.NewVersionCmd("rfs"))
}
