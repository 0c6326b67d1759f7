package cli

import (
	"os"
	"path/filepath"

	"github.com/berrythewa/rfs/internal/ipc"
	"github.com/berrythewa/rfs/internal/server"
	"go.uber.org/zap"
)

// startControl serves ping and status on the control socket. Failure to
// bind is logged and otherwise ignored; the file server runs without it.
func startControl(socketPath string, srv *server.Server) func() {
	if socketPath == "" {
		return func() {}
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		logger.Warn("Control socket disabled", zap.Error(err))
		return func() {}
	}

	ctl, err := ipc.Listen(socketPath, controlHandler(srv), logger)
	if err != nil {
		logger.Warn("Control socket disabled", zap.Error(err))
		return func() {}
	}
	logger.Debug("Control socket listening", zap.String("path", ctl.Path()))
	return func() { ctl.Close() }
}

func controlHandler(srv *server.Server) ipc.Handler {
	return func(req *ipc.Request) *ipc.Response {
		switch req.Command {
		case ipc.CmdPing:
			return ipc.OK(nil)
		case ipc.CmdStatus:
			return ipc.OK(srv.Stats())
		default:
			return ipc.Error("unknown command")
		}
	}
}
