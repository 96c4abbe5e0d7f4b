package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Control protocol errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadPosition    = errors.New("position must be a positive integer")
)

// clientTimeout bounds a whole client exchange.
const clientTimeout = 5 * time.Second

// IPCHandler processes one control command and returns a JSON-encodable
// reply.
type IPCHandler interface {
	HandleCommand(cmd string, args []string) (any, error)
}

// Forcer is the engine capability the control channel exposes.
type Forcer interface {
	Force(index int) error
}

// Control implements IPCHandler for barpulse:
//
//	FORCE <position>   force-update the segment at a 1-based position
//	STATUS             current line plus per-segment status
//	QUIT               stop the daemon
type Control struct {
	Forcer   Forcer
	Snapshot SnapshotFunc
	Quit     func()
}

// Reply is the acknowledgement for commands without a payload.
type Reply struct {
	OK bool `json:"ok"`
}

// HandleCommand implements IPCHandler.
func (c *Control) HandleCommand(cmd string, args []string) (any, error) {
	switch cmd {
	case "FORCE":
		if len(args) != 1 {
			return nil, fmt.Errorf("FORCE: %w", ErrBadPosition)
		}
		pos, err := strconv.Atoi(args[0])
		if err != nil || pos < 1 {
			return nil, fmt.Errorf("FORCE %s: %w", args[0], ErrBadPosition)
		}
		if err := c.Forcer.Force(pos - 1); err != nil {
			return nil, err
		}
		return Reply{OK: true}, nil
	case "STATUS":
		return c.Snapshot(), nil
	case "QUIT":
		if c.Quit != nil {
			c.Quit()
		}
		return Reply{OK: true}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, cmd)
	}
}

// IPCServer listens on a Unix domain socket for line-based commands and
// answers each with one JSON line.
type IPCServer struct {
	socketPath string
	handler    IPCHandler
	logger     *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}
	once     sync.Once
}

// NewIPCServer creates an IPC server that will listen on socketPath and
// dispatch commands to handler.
func NewIPCServer(socketPath string, handler IPCHandler, logger *slog.Logger) *IPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPCServer{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start begins listening. A stale socket file at the path is removed first
// and the new socket is owner-only.
func (s *IPCServer) Start() error {
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Serve starts the server and stops it when ctx is done.
func (s *IPCServer) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop closes the listener, waits for open connections, and removes the
// socket file. It is safe to call more than once.
func (s *IPCServer) Stop() {
	s.once.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		_ = os.Remove(s.socketPath)
	})
}

func (s *IPCServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Debug("control socket accept failed", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *IPCServer) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(clientTimeout))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	cmd, args := parseIPCCommand(scanner.Text())
	if cmd == "" {
		return
	}

	reply, err := s.handler.HandleCommand(cmd, args)
	if err != nil {
		reply = map[string]string{"error": err.Error()}
	}
	data, err := json.Marshal(reply)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	s.logger.Debug("control command", "command", cmd, "args", args)
	fmt.Fprintf(conn, "%s\n", data)
}

// parseIPCCommand splits a line into an upper-cased command and its
// positional arguments.
func parseIPCCommand(line string) (string, []string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToUpper(parts[0]), parts[1:]
}

// IPCClient sends commands to a running daemon.
type IPCClient struct {
	socketPath string
}

// NewIPCClient creates a client for the daemon at socketPath.
func NewIPCClient(socketPath string) *IPCClient {
	return &IPCClient{socketPath: socketPath}
}

// SendCommand sends cmd and returns the raw JSON reply line. A reply
// carrying an error field is returned as an error.
func (c *IPCClient) SendCommand(ctx context.Context, cmd string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return "", fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		return "", errors.New("empty response from daemon")
	}

	line := scanner.Text()
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(line), &e) == nil && e.Error != "" {
		return line, errors.New(e.Error)
	}
	return line, nil
}

// Force asks the daemon to force-update the segment at a 1-based position.
func (c *IPCClient) Force(ctx context.Context, position int) error {
	_, err := c.SendCommand(ctx, "FORCE "+strconv.Itoa(position))
	return err
}
