package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/berrythewa/rfs/internal/lister"
	"github.com/berrythewa/rfs/internal/protocol"
	"go.uber.org/zap"
)

// Fixed response texts.
const (
	MsgDirectoryChanged = "directory changed"
	MsgFileStored       = "file stored"
	MsgUnknownCommand   = "unknown command"

	putModeDefault  os.FileMode = 0644
	putModeOverride os.FileMode = 0664

	// Uploads land in a temporary file beside the destination and are
	// renamed over it once complete.
	tempPattern = ".rfs-put-*"
)

var (
	errMissingArgument = errors.New("missing argument")
	errFileTooLarge    = errors.New("file too large")
)

// maxFileSize is the largest file a get response frame can carry.
var maxFileSize int64 = math.MaxUint32

// Dispatcher maps a decoded request to a local action and builds its
// response. It holds no per-connection state.
type Dispatcher struct {
	wd     *Workdir
	lister lister.Lister
	limits protocol.Limits
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher acting on wd.
func NewDispatcher(wd *Workdir, l lister.Lister, limits protocol.Limits, logger *zap.Logger) *Dispatcher {
	if l == nil {
		l = lister.NewShellLister()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{wd: wd, lister: l, limits: limits, logger: logger}
}

// Dispatch executes req. Command failures are reported inside the returned
// Response; a non-nil error means the connection is out of sync and must be
// dropped without replying. conn is only read by put, for its data frame.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request, conn io.Reader) (*Response, error) {
	switch req.Command {
	case protocol.CmdPwd:
		return d.pwd(), nil
	case protocol.CmdDir:
		return d.dir(ctx, req), nil
	case protocol.CmdCd:
		return d.cd(req), nil
	case protocol.CmdGet:
		return d.get(req), nil
	case protocol.CmdPut:
		return d.put(req, conn)
	default:
		return textResponse(MsgUnknownCommand), nil
	}
}

func (d *Dispatcher) pwd() *Response {
	dir, err := d.wd.Get()
	if err != nil {
		return failureResponse("cannot get working directory", err)
	}
	return textResponse(dir)
}

func (d *Dispatcher) dir(ctx context.Context, req protocol.Request) *Response {
	arg, _ := req.Arg(0)
	mode := lister.ParseMode(arg)

	dir, err := d.wd.Get()
	if err != nil {
		return failureResponse("cannot list directory", err)
	}
	out, err := d.lister.List(ctx, dir, mode)
	if err != nil {
		return failureResponse("cannot list directory", err)
	}
	return textResponse(out)
}

func (d *Dispatcher) cd(req protocol.Request) *Response {
	target, ok := req.Arg(0)
	if !ok {
		return failureResponse("cannot change directory", errMissingArgument)
	}
	if err := d.wd.Change(target); err != nil {
		return failureResponse("cannot change directory", err)
	}
	return textResponse(MsgDirectoryChanged)
}

func (d *Dispatcher) get(req protocol.Request) *Response {
	fail := func(err error) *Response {
		r := failureResponse("cannot read file", err)
		r.WithOutcome = true
		r.Outcome = protocol.OutcomeFailure
		return r
	}

	path, ok := req.Arg(0)
	if !ok {
		return fail(errMissingArgument)
	}
	path = d.wd.Resolve(path)
	info, err := os.Stat(path)
	if err != nil {
		return fail(err)
	}
	if info.Size() > maxFileSize {
		return fail(errFileTooLarge)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	if int64(len(data)) > maxFileSize {
		return fail(errFileTooLarge)
	}
	return &Response{
		WithOutcome: true,
		Outcome:     protocol.OutcomeSuccess,
		Payload:     data,
	}
}

// put always consumes the data frame that follows the request before it
// answers, whatever happens to the destination. The destination is only
// replaced once the whole body has been written, so an aborted upload
// leaves it as it was.
func (d *Dispatcher) put(req protocol.Request, conn io.Reader) (*Response, error) {
	size, err := protocol.ReadFrameHeader(conn)
	if err != nil {
		return nil, fmt.Errorf("put data: %w", err)
	}
	if limit := d.limits.MaxPayload; limit > 0 && size > limit {
		return nil, fmt.Errorf("put data: %w: %d bytes, limit %d", protocol.ErrFrameTooLarge, size, limit)
	}

	dest, mode, ok := putDestination(req)
	if !ok {
		if _, err := protocol.CopyFrameBody(io.Discard, conn, size); err != nil {
			return nil, fmt.Errorf("put data: %w", err)
		}
		return failureResponse("cannot store file", errMissingArgument), nil
	}

	path := d.wd.Resolve(dest)
	tmp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		if _, drainErr := protocol.CopyFrameBody(io.Discard, conn, size); drainErr != nil {
			return nil, fmt.Errorf("put data: %w", drainErr)
		}
		return failureResponse("cannot store file", err), nil
	}
	tmpName := tmp.Name()
	stored := false
	defer func() {
		if !stored {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	written, copyErr := protocol.CopyFrameBody(tmp, conn, size)
	closeErr := tmp.Close()

	var sinkErr *protocol.SinkError
	switch {
	case copyErr != nil && !errors.As(copyErr, &sinkErr):
		return nil, fmt.Errorf("put data: %w", copyErr)
	case copyErr != nil:
		return failureResponse("cannot store file", sinkErr.Err), nil
	case closeErr != nil:
		return failureResponse("cannot store file", closeErr), nil
	}

	if err := os.Chmod(tmpName, mode); err != nil {
		return failureResponse("cannot store file", err), nil
	}
	if err := os.Rename(tmpName, path); err != nil {
		return failureResponse("cannot store file", err), nil
	}
	stored = true

	d.logger.Debug("Stored file",
		zap.String("path", path),
		zap.Int64("bytes", written))

	resp := textResponse(MsgFileStored)
	resp.Stored = written
	return resp, nil
}

// putDestination picks the remote path of a put: the first argument, or the
// second when present, each with its own creation mode.
func putDestination(req protocol.Request) (string, os.FileMode, bool) {
	if dest, ok := req.Arg(1); ok {
		return dest, putModeOverride, true
	}
	if dest, ok := req.Arg(0); ok {
		return dest, putModeDefault, true
	}
	return "", 0, false
}
