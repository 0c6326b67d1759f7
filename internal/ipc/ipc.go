// Package ipc is the local control channel between the rfsd CLI and a
// running server: one JSON request and one JSON response per connection
// over a Unix socket.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler answers a control request.
type Handler func(*Request) *Response

// SendRequest connects to the server, sends a request, and returns the response.
func SendRequest(socketPath string, req *Request, timeout time.Duration) (*Response, error) {
	if runtime.GOOS == "windows" {
		return nil, errors.New("control socket not supported on windows")
	}
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer conn.Close()
	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// Server serves control requests on a Unix socket.
type Server struct {
	path    string
	ln      net.Listener
	handler Handler
	logger  *zap.Logger
	wg      sync.WaitGroup

	done      chan struct{}
	closeOnce sync.Once
}

// Listen removes any stale socket at socketPath, binds it and starts
// serving in the background.
func Listen(socketPath string, handler Handler, logger *zap.Logger) (*Server, error) {
	if runtime.GOOS == "windows" {
		return nil, errors.New("control socket not supported on windows")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	s := newServer(socketPath, ln, handler, logger)
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func newServer(path string, ln net.Listener, handler Handler, logger *zap.Logger) *Server {
	return &Server{
		path:    path,
		ln:      ln,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (s *Server) serve() {
	defer s.wg.Done()

	var backoff time.Duration
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.logger.Debug("Control accept failed",
				zap.Error(err),
				zap.Duration("retry_in", backoff))
			select {
			case <-s.done:
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	enc := json.NewEncoder(conn)
	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		enc.Encode(Error("invalid request: " + err.Error()))
		return
	}
	s.logger.Debug("Control request", zap.String("command", req.Command))

	resp := s.handler(&req)
	if resp == nil {
		resp = Error("no response")
	}
	if err := enc.Encode(resp); err != nil {
		s.logger.Debug("Failed to write control response", zap.Error(err))
	}
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Close stops serving and removes the socket file.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ln.Close()
		s.wg.Wait()
		os.Remove(s.path)
	})
	return err
}
