package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/msredis/msredis/lua"
	"github.com/msredis/msredis/protocol"
	"github.com/msredis/msredis/storage"
)

// maxProtocolErrors is the number of consecutive malformed requests a
// client may send before its connection is closed
const maxProtocolErrors = 3

// Logger interface for server logging
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector interface for server metrics
type MetricsCollector interface {
	RecordCommandProcessed(cmd string, duration time.Duration)
	RecordError(errorType string)
}

// Server provides Redis protocol server functionality
type Server struct {
	storage storage.Storage
	lua     *lua.Engine

	// Server configuration
	addr        string
	password    string
	readTimeout time.Duration
	version     string
	logger      Logger
	metrics     MetricsCollector

	// Connection management
	listener net.Listener
	clients  sync.Map // map[net.Conn]*Client
	nextID   atomic.Int64

	// Control
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time

	// Metrics
	connCount    atomic.Int64
	commandCount atomic.Int64
	errorCount   atomic.Int64
}

// Client represents a connected client
type Client struct {
	id     int64
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	server *Server

	// Client state
	authenticated  bool
	dbIndex        int
	db             storage.Keyspace
	protocolErrors int
	quit           bool
	lastCmd        time.Time

	// Control
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewServer creates a new Redis protocol server
func NewServer(addr string, stor storage.Storage) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		storage: stor,
		lua:     lua.NewEngine(),
		addr:    addr,
		logger:  nopLogger{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetPassword sets the authentication password for the server
func (s *Server) SetPassword(password string) {
	s.password = password
}

// SetReadTimeout closes clients idle for longer than d; zero disables it
func (s *Server) SetReadTimeout(d time.Duration) {
	s.readTimeout = d
}

// SetVersion sets the version reported by INFO
func (s *Server) SetVersion(v string) {
	s.version = v
}

// SetLogger sets the server logger
func (s *Server) SetLogger(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	s.logger = l
}

// SetMetrics sets the metrics collector
func (s *Server) SetMetrics(m MetricsCollector) {
	s.metrics = m
}

// Start starts listening and serving clients
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.startedAt = time.Now()
	s.logger.Info("Server listening", "addr", s.listener.Addr().String())

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Stop stops the server and closes every client connection
func (s *Server) Stop() error {
	s.cancel()

	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.clients.Range(func(_, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.Close()
		}
		return true
	})

	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connected_clients": s.clientCount(),
		"total_commands":    s.commandCount.Load(),
		"total_errors":      s.errorCount.Load(),
		"total_connections": s.connCount.Load(),
	}
}

func (s *Server) clientCount() int {
	count := 0
	s.clients.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Accept failed", "error", err)
			continue
		}

		s.handleNewClient(conn)
	}
}

// handleNewClient registers a connection and starts serving it
func (s *Server) handleNewClient(conn net.Conn) {
	s.connCount.Add(1)

	db, _ := s.storage.DB(0)
	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		id:            s.nextID.Add(1),
		conn:          conn,
		reader:        protocol.NewReader(conn),
		writer:        protocol.NewWriter(conn),
		server:        s,
		authenticated: s.password == "",
		db:            db,
		lastCmd:       time.Now(),
		ctx:           ctx,
		cancel:        cancel,
	}

	s.clients.Store(conn, client)
	s.logger.Debug("Client connected", "id", client.id, "remote", conn.RemoteAddr().String())

	s.wg.Add(1)
	go client.handle()
}

// Close closes the client connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
		c.server.clients.Delete(c.conn)
	})
}

// handle serves requests until the client disconnects, sends QUIT, or
// sends too many malformed requests
func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.Close()
	defer func() { _ = c.writer.Flush() }()

	for c.ctx.Err() == nil {
		if c.server.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.server.readTimeout))
		}

		frame, err := c.reader.ReadFrame()
		if err != nil {
			if !c.handleReadError(err) {
				return
			}
			continue
		}

		cmd, err := protocol.ParseCommand(frame)
		if err != nil {
			if !c.protocolError(err, true) {
				return
			}
			continue
		}
		c.protocolErrors = 0
		c.lastCmd = time.Now()

		if err := c.writeReply(c.execute(cmd)); err != nil {
			c.server.logger.Debug("Write failed", "id", c.id, "error", err)
			return
		}
		if c.quit {
			return
		}
	}
}

// handleReadError reports whether the connection can keep serving
func (c *Client) handleReadError(err error) bool {
	if errors.Is(err, io.EOF) || c.ctx.Err() != nil {
		return false
	}
	if !protocol.IsProtocolError(err) {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			c.server.logger.Debug("Client idle timeout", "id", c.id)
		} else {
			c.server.logger.Debug("Read failed", "id", c.id, "error", err)
		}
		return false
	}
	return c.protocolError(err, protocol.IsRecoverable(err))
}

// protocolError replies to a malformed request and reports whether the
// connection stays open
func (c *Client) protocolError(err error, recoverable bool) bool {
	c.protocolErrors++
	c.server.logger.Debug("Protocol error", "id", c.id, "error", err, "count", c.protocolErrors)
	msg := strings.TrimPrefix(err.Error(), "protocol error: ")
	if werr := c.writeReply(protocol.Error("ERR Protocol error: " + msg)); werr != nil {
		return false
	}
	return recoverable && c.protocolErrors < maxProtocolErrors
}

// execute dispatches a command through the command table
func (c *Client) execute(cmd *protocol.Command) protocol.Frame {
	c.server.commandCount.Add(1)

	entry, ok := commands[cmd.Name]
	if !ok {
		return protocol.Errorf("ERR unknown command '%s'", cmd.Name)
	}
	if !c.authenticated && !entry.noAuth {
		return protocol.Error("NOAUTH Authentication required.")
	}
	if !entry.arityOK(len(cmd.Args) + 1) {
		return wrongArgs(cmd.Name)
	}

	start := time.Now()
	reply := entry.handler(c, cmd.Args)
	if c.server.metrics != nil {
		c.server.metrics.RecordCommandProcessed(cmd.Name, time.Since(start))
	}
	return reply
}

// writeReply writes f and flushes unless more pipelined requests are buffered
func (c *Client) writeReply(f protocol.Frame) error {
	if f.IsError() {
		c.server.errorCount.Add(1)
		msg := string(f.Data)
		if c.server.metrics != nil {
			kind, _, _ := strings.Cut(msg, " ")
			c.server.metrics.RecordError(kind)
		}
		// Error text must stay on one line
		f = protocol.Error(strings.NewReplacer("\r", " ", "\n", " ").Replace(msg))
	}
	if err := c.writer.WriteFrame(f); err != nil {
		return err
	}
	if c.reader.Buffered() > 0 {
		return nil
	}
	return c.writer.Flush()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
