// Package server implements rfsd: a serial TCP loop that answers one
// request per connection against a shared working directory.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/berrythewa/rfs/internal/lister"
	"github.com/berrythewa/rfs/internal/protocol"
	"github.com/berrythewa/rfs/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures a Server.
type Options struct {
	// Addr is the TCP address to bind, e.g. ":8080".
	Addr string
	// WorkDir is the initial working directory.
	WorkDir string
	// Limits bounds incoming frames. Zero fields take protocol defaults.
	Limits protocol.Limits
	// Lister produces dir output. Defaults to a ShellLister.
	Lister lister.Lister
	// Journal records every served request when set.
	Journal storage.Recorder
}

// Server accepts connections one at a time and dispatches their request.
type Server struct {
	id         string
	addr       string
	wd         *Workdir
	dispatcher *Dispatcher
	limits     protocol.Limits
	journal    storage.Recorder
	logger     *zap.Logger
	started    time.Time
	counters   counters

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// New creates a server. It does not bind until Listen or ListenAndServe.
func New(opts Options, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	wd, err := NewWorkdir(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("invalid working directory: %w", err)
	}

	limits := opts.Limits.WithDefaults()
	s := &Server{
		id:      uuid.NewString(),
		started: time.Now(),
		addr:    opts.Addr,
		wd:      wd,
		limits:  limits,
		journal: opts.Journal,
		logger:  logger,
	}
	s.dispatcher = NewDispatcher(wd, opts.Lister, limits, logger)
	return s, nil
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		ln.Close()
		return net.ErrClosed
	}
	s.listener = ln
	return nil
}

// ListenAndServe binds and then serves until ctx is done or Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs the accept loop. It returns nil once the server is closed,
// either through Close or by cancelling ctx.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server is not listening")
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-stop:
		}
	}()

	s.logger.Info("Server started",
		zap.String("id", s.id),
		zap.String("addr", ln.Addr().String()),
		zap.String("workdir", s.wd.String()))

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				s.logger.Info("Server stopped", zap.String("id", s.id))
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.logger.Warn("Accept failed",
				zap.Error(err),
				zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.handle(ctx, conn)
	}
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Workdir returns the shared working directory handle.
func (s *Server) Workdir() *Workdir {
	return s.wd
}

// Close stops accepting connections. A connection being served is finished
// first. Close is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handle serves exactly one request on conn and closes it. Errors stay
// local to the connection.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	start := time.Now()
	peer := conn.RemoteAddr().String()
	entry := &storage.Entry{Peer: peer}
	defer func() {
		entry.Duration = time.Since(start)
		s.record(entry)
	}()

	req, err := protocol.ReadRequest(conn, s.limits)
	if err != nil {
		entry.Error = err.Error()
		s.counters.dropped.Add(1)
		s.logger.Warn("Dropping connection: bad request",
			zap.String("peer", peer),
			zap.Error(err))
		return
	}
	entry.Command = string(req.Command)
	entry.Args = req.Args

	s.logger.Info("Request received",
		zap.String("peer", peer),
		zap.String("command", string(req.Command)),
		zap.Strings("args", req.Args))
	if !req.Command.Known() {
		s.logger.Warn("Unknown command",
			zap.String("peer", peer),
			zap.String("command", string(req.Command)))
	}

	resp, err := s.dispatcher.Dispatch(ctx, req, conn)
	if err != nil {
		entry.Error = err.Error()
		s.counters.dropped.Add(1)
		s.logger.Warn("Dropping connection",
			zap.String("peer", peer),
			zap.String("command", string(req.Command)),
			zap.Error(err))
		return
	}
	defer resp.Release()

	entry.OK = resp.OK()
	entry.Bytes = int64(len(resp.Payload))
	if resp.Stored > 0 {
		entry.Bytes = resp.Stored
	}
	if resp.Failure != nil {
		entry.Message = string(resp.Payload)
	}

	if err := resp.Send(conn); err != nil {
		entry.Error = err.Error()
		s.counters.dropped.Add(1)
		s.logger.Warn("Failed to send response",
			zap.String("peer", peer),
			zap.String("command", string(req.Command)),
			zap.Error(err))
		return
	}

	s.counters.served.Add(1)
	if !resp.OK() {
		s.counters.failed.Add(1)
	}

	fields := []zap.Field{
		zap.String("peer", peer),
		zap.String("command", string(req.Command)),
		zap.Bool("ok", resp.OK()),
		zap.Int("length", resp.WireLen()),
		zap.Duration("elapsed", time.Since(start)),
	}
	if resp.WithOutcome {
		fields = append(fields, zap.Stringer("outcome", resp.Outcome))
	}
	if resp.Failure != nil {
		fields = append(fields, zap.NamedError("failure", resp.Failure))
	}
	s.logger.Info("Response sent", fields...)
}

func (s *Server) record(e *storage.Entry) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(e); err != nil {
		s.logger.Warn("Failed to journal request", zap.Error(err))
	}
}
