package client

import (
	"fmt"

	"github.com/berrythewa/rfs/internal/protocol"
)

// ResolutionError means the server name has no usable IPv4 address.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %s: no IPv4 address", e.Host)
	}
	return fmt.Sprintf("resolve %s: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ConnectionError means the TCP connection could not be established.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// LocalFileError means the source file of a put could not be read.
type LocalFileError struct {
	Path string
	Err  error
}

func (e *LocalFileError) Error() string {
	return fmt.Sprintf("cannot read local file %q: %v", e.Path, e.Err)
}

func (e *LocalFileError) Unwrap() error { return e.Err }

// LocalWriteError means a fetched file could not be written locally.
type LocalWriteError struct {
	Path string
	Err  error
}

func (e *LocalWriteError) Error() string {
	return fmt.Sprintf("cannot write local file %q: %v", e.Path, e.Err)
}

func (e *LocalWriteError) Unwrap() error { return e.Err }

// RemoteOperationError carries the server's message for a failed get.
type RemoteOperationError struct {
	Command protocol.Command
	Message string
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("remote %s failed: %s", e.Command, e.Message)
}
