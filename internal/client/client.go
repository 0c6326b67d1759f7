// Package client sends a single rfs command to a server and decodes the reply.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/berrythewa/rfs/internal/config"
	"github.com/berrythewa/rfs/internal/protocol"
	"go.uber.org/zap"
)

const localFileMode os.FileMode = 0644

// Result is the decoded reply to one command.
type Result struct {
	Command protocol.Command

	// Text is the response text with its terminator removed. For a failed
	// get it holds the server's message.
	Text string

	// Outcome is only meaningful for get.
	Outcome protocol.Outcome

	// LocalPath is the file a successful get wrote.
	LocalPath string

	// Bytes counts file data moved: received by get, sent by put.
	Bytes int64
}

// Client talks to an rfs server. Each SendCommand opens and closes exactly
// one connection.
type Client struct {
	Port        int
	DialTimeout time.Duration
	// MaxPayload bounds file data in either direction. Zero means the
	// protocol maximum.
	MaxPayload uint32
	Resolver   *net.Resolver
	Logger     *zap.Logger
}

// New creates a client from the client section of the configuration.
func New(cfg config.ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultPort
	}
	return &Client{
		Port:        port,
		DialTimeout: cfg.DialTimeout,
		MaxPayload:  cfg.MaxPayload,
		Resolver:    net.DefaultResolver,
		Logger:      logger,
	}
}

// ValidateArgs checks that command has the arguments it needs. Extra
// arguments are allowed; they are dropped when the request is built.
func ValidateArgs(command string, args []string) error {
	if command == "" {
		return errors.New("missing command")
	}
	cmd := protocol.Command(command)
	if len(args) < cmd.MinArgs() {
		switch cmd {
		case protocol.CmdCd:
			return errors.New("missing directory argument for cd")
		default:
			return fmt.Errorf("missing file argument for %s", cmd)
		}
	}
	return nil
}

// SendCommand runs command with args on server and returns the decoded reply.
// At most two arguments go on the wire. A failed get is reported as a
// *RemoteOperationError; other commands report failures as text.
func (c *Client) SendCommand(ctx context.Context, server, command string, args ...string) (*Result, error) {
	req := protocol.NewRequest(command, args...).Capped()

	// put reads its source before touching the network.
	var data []byte
	if req.Command == protocol.CmdPut {
		src, ok := req.Arg(0)
		if !ok {
			return nil, &LocalFileError{Err: errors.New("missing source path")}
		}
		var err error
		if data, err = os.ReadFile(src); err != nil {
			return nil, &LocalFileError{Path: src, Err: err}
		}
		if uint64(len(data)) > uint64(c.maxPayload()) {
			return nil, &LocalFileError{Path: src, Err: protocol.ErrFrameTooLarge}
		}
	}

	conn, err := c.dial(ctx, server)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	c.Logger.Debug("Sending request",
		zap.String("server", conn.RemoteAddr().String()),
		zap.Strings("words", req.Words()))

	if err := protocol.WriteRequest(conn, req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	res := &Result{Command: req.Command}
	switch req.Command {
	case protocol.CmdPut:
		if err := protocol.WriteFrame(conn, data); err != nil {
			return nil, fmt.Errorf("send file data: %w", err)
		}
		res.Bytes = int64(len(data))
		if res.Text, err = readText(conn); err != nil {
			return nil, err
		}
	case protocol.CmdGet:
		if err := c.receiveFile(conn, req, res); err != nil {
			return nil, err
		}
	default:
		if res.Text, err = readText(conn); err != nil {
			return nil, err
		}
	}

	c.Logger.Debug("Response received",
		zap.String("command", string(res.Command)),
		zap.Int64("bytes", res.Bytes))
	return res, nil
}

func (c *Client) receiveFile(conn net.Conn, req protocol.Request, res *Result) error {
	outcome, err := protocol.ReadOutcome(conn)
	if err != nil {
		return fmt.Errorf("read outcome: %w", err)
	}
	payload, err := protocol.ReadFrame(conn, c.maxPayload())
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	res.Outcome = outcome

	if !outcome.OK() {
		res.Text = protocol.TrimText(payload)
		return &RemoteOperationError{Command: req.Command, Message: res.Text}
	}

	remote, _ := req.Arg(0)
	dest := localPath(remote, req.Args)
	if err := os.WriteFile(dest, payload, localFileMode); err != nil {
		return &LocalWriteError{Path: dest, Err: err}
	}
	res.LocalPath = dest
	res.Bytes = int64(len(payload))
	return nil
}

// localPath is where get stores remote: the second argument when given,
// otherwise the remote file's base name in the current directory.
func localPath(remote string, args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return filepath.Base(remote)
}

func (c *Client) dial(ctx context.Context, server string) (net.Conn, error) {
	ip, err := c.resolve(ctx, server)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(ip.String(), strconv.Itoa(c.Port))
	d := net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp4", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	return conn, nil
}

func (c *Client) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, &ResolutionError{Host: host}
	}

	resolver := c.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ips, err := resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, &ResolutionError{Host: host, Err: err}
	}
	if len(ips) == 0 {
		return nil, &ResolutionError{Host: host}
	}
	return ips[0], nil
}

func (c *Client) maxPayload() uint32 {
	if c.MaxPayload == 0 {
		return protocol.DefaultMaxPayload
	}
	return c.MaxPayload
}

// readText reads a text response, which is never larger than an argument.
func readText(conn net.Conn) (string, error) {
	payload, err := protocol.ReadFrame(conn, protocol.DefaultMaxArgLen)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return protocol.TrimText(payload), nil
}
