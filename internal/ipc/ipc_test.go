//go:build unix

package ipc

import (
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func shortSocketPath(t *testing.T) string {
	t.Helper()
	// Unix socket paths are limited to ~100 bytes; t.TempDir can exceed it.
	dir, err := os.MkdirTemp("", "rfs")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}

func TestRoundTrip(t *testing.T) {
	path := shortSocketPath(t)

	type payload struct {
		Served int    `json:"served"`
		Dir    string `json:"dir"`
	}
	srv, err := Listen(path, func(req *Request) *Response {
		switch req.Command {
		case CmdPing:
			return OK(nil)
		case CmdStatus:
			return OK(payload{Served: 3, Dir: "/srv"})
		default:
			return Error("unknown command")
		}
	}, nil)
	require.NoError(t, err)

	resp, err := SendRequest(path, &Request{Command: CmdPing}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	resp, err = SendRequest(path, &Request{Command: CmdStatus}, time.Second)
	require.NoError(t, err)
	var p payload
	require.NoError(t, resp.Decode(&p))
	assert.Equal(t, payload{Served: 3, Dir: "/srv"}, p)

	resp, err = SendRequest(path, &Request{Command: "reboot"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "unknown command", resp.Message)

	require.NoError(t, srv.Close())
	assert.NoFileExists(t, path)

	_, err = SendRequest(path, &Request{Command: CmdPing}, time.Second)
	assert.Error(t, err)
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := shortSocketPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0600))

	srv, err := Listen(path, func(*Request) *Response { return OK(nil) }, nil)
	require.NoError(t, err)
	defer srv.Close()

	resp, err := SendRequest(path, &Request{Command: CmdPing}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

// failingListener fails every Accept with EMFILE until it is closed.
type failingListener struct {
	mu      sync.Mutex
	accepts int
	closed  chan struct{}
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	l.accepts++
	l.mu.Unlock()
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	default:
		return nil, syscall.EMFILE
	}
}

func (l *failingListener) Close() error {
	close(l.closed)
	return nil
}

func (l *failingListener) Addr() net.Addr { return &net.UnixAddr{Name: "failing", Net: "unix"} }

func (l *failingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accepts
}

func TestServeBacksOffOnAcceptErrors(t *testing.T) {
	ln := &failingListener{closed: make(chan struct{})}
	s := newServer(filepath.Join(t.TempDir(), "ctl.sock"), ln, func(*Request) *Response { return OK(nil) }, zap.NewNop())
	s.wg.Add(1)
	go s.serve()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Close())

	// Retries at 5, 10, 20 and 40ms fit in the window.
	n := ln.count()
	assert.GreaterOrEqual(t, n, 2)
	assert.Less(t, n, 10)
}
