// Package transport runs the stdio protocol loop: newline-delimited
// JSON-RPC requests in, serialized responses out, diagnostics on stderr
// only. Bad input produces error responses, never a dead process.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"deploygate/api"
	"deploygate/internal/jsonrpc"
	"deploygate/internal/session"
	"deploygate/internal/tools"
)

// ProtocolVersion is the handshake version this server advertises.
const ProtocolVersion = "2025-06-18"

// maxMessageSize caps a single inbound line.
const maxMessageSize = 10 * 1024 * 1024

// Server owns one protocol session over a pair of byte streams.
type Server struct {
	sess       *session.Session
	svc        *tools.Service
	logger     *slog.Logger
	serverInfo api.Implementation

	in  io.Reader
	out *bufio.Writer

	// writeMu serializes whole messages onto the output stream so
	// concurrent handler completions never interleave partial writes.
	writeMu sync.Mutex

	// wg tracks in-flight tool calls so shutdown can drain them.
	wg sync.WaitGroup
}

// New creates a Server reading requests from in and writing responses to out.
func New(in io.Reader, out io.Writer, svc *tools.Service, logger *slog.Logger, info api.Implementation) *Server {
	return &Server{
		sess:       session.New(),
		svc:        svc,
		logger:     logger,
		serverInfo: info,
		in:         in,
		out:        bufio.NewWriter(out),
	}
}

// Session exposes the lifecycle object for observation.
func (s *Server) Session() *session.Session { return s.sess }

// inputLine is one newline-delimited unit of input. An oversize line has no
// data; it still gets a parse-error response while the loop keeps reading.
type inputLine struct {
	data     []byte
	oversize bool
}

// Run reads messages until end-of-stream or context cancellation. In-flight
// tool calls are drained before it returns; the session ends stopped either
// way. The returned error is nil for a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("server starting", "session_id", s.sess.ID())

	lines := make(chan inputLine)
	readErr := make(chan error, 1)
	go s.readLines(ctx, lines, readErr)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown signal received")
			s.shutdown()
			return nil
		case line, ok := <-lines:
			if !ok {
				s.logger.Info("input stream closed")
				s.shutdown()
				if err := <-readErr; err != nil {
					return fmt.Errorf("reading input stream: %w", err)
				}
				return nil
			}
			if line.oversize {
				s.logger.Warn("dropping oversized message", "limit", maxMessageSize)
				s.write(jsonrpc.NewParseError(fmt.Sprintf("message exceeds %d bytes", maxMessageSize)))
				continue
			}
			if len(line.data) == 0 {
				continue
			}
			s.handleLine(line.data)
		}
	}
}

// readLines splits the input stream on newlines. A line beyond
// maxMessageSize is discarded up to its terminating newline and surfaced as
// an oversize marker, so one bad message never ends the session.
func (s *Server) readLines(ctx context.Context, lines chan<- inputLine, readErr chan<- error) {
	reader := bufio.NewReaderSize(s.in, 64*1024)
	var buf []byte
	dropping := false
	for {
		chunk, err := reader.ReadSlice('\n')
		if !dropping {
			buf = append(buf, chunk...)
			if len(buf) > maxMessageSize {
				buf = nil
				dropping = true
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			readErr <- err
			close(lines)
			return
		}

		if dropping || len(buf) > 0 {
			line := inputLine{oversize: dropping}
			if !dropping {
				line.data = bytes.TrimRight(buf, "\r\n")
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		buf = nil
		dropping = false

		if err == io.EOF {
			readErr <- nil
			close(lines)
			return
		}
	}
}

// shutdown moves the session to shutting_down, waits for in-flight calls
// (each bounded by its own timeout), and marks the session stopped.
func (s *Server) shutdown() {
	s.sess.BeginShutdown()
	s.wg.Wait()
	s.sess.MarkStopped()
	s.logger.Info("server stopped", "session_id", s.sess.ID())
}

func (s *Server) handleLine(line []byte) {
	msg, err := jsonrpc.Parse(line)
	if err != nil {
		var verr *jsonrpc.VersionError
		if errors.As(err, &verr) {
			// The bytes parsed; only the declared version is wrong. The
			// request id survives for correlation.
			s.logger.Warn("bad protocol version", "version", verr.Version)
			s.write(jsonrpc.NewError(msg.ID, api.CodeInvalidRequest, err.Error()))
			return
		}
		s.logger.Warn("unparseable message", "error", err, "size", len(line))
		s.write(jsonrpc.NewParseError(err.Error()))
		return
	}

	if msg.IsResponse() {
		// This server sends no requests, so responses have no home.
		s.logger.Debug("ignoring unexpected response", "id", string(msg.ID))
		return
	}

	switch msg.Method {
	case "initialize":
		s.handleInitialize(msg)
	case "notifications/initialized":
		s.logger.Debug("client reported initialized", "state", s.sess.State())
	case "ping":
		s.handlePing(msg)
	case "tools/list":
		s.handleToolsList(msg)
	case "tools/call":
		s.handleToolsCall(msg)
	default:
		if msg.IsNotification() {
			s.logger.Debug("ignoring unknown notification", "method", msg.Method)
			return
		}
		s.write(jsonrpc.NewError(msg.ID, api.CodeMethodNotFound, fmt.Sprintf("unknown method: %q", msg.Method)))
	}
}

func (s *Server) handleInitialize(msg *api.JSONRPCMessage) {
	var params api.InitializeParams
	if msg.Params != nil {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.write(jsonrpc.NewError(msg.ID, api.CodeInvalidParams, "malformed initialize params: "+err.Error()))
			return
		}
	}

	if err := s.sess.BeginInitialize(params.ProtocolVersion); err != nil {
		s.logger.Warn("handshake rejected", "state", s.sess.State(), "error", err)
		s.write(jsonrpc.NewError(msg.ID, api.CodeInvalidRequest, err.Error()))
		return
	}

	result := api.InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      s.serverInfo,
		Capabilities:    api.Capabilities{Tools: map[string]any{}},
	}
	if !s.writeResult(msg.ID, result) {
		return
	}
	// Ready only after the handshake response is on the wire.
	if err := s.sess.MarkReady(); err != nil {
		s.logger.Error("lifecycle transition failed", "error", err)
		return
	}
	s.logger.Info("handshake complete",
		"session_id", s.sess.ID(),
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
	)
}

func (s *Server) handlePing(msg *api.JSONRPCMessage) {
	if err := s.sess.CheckDispatch(); err != nil {
		s.write(jsonrpc.NewError(msg.ID, api.CodeInvalidRequest, err.Error()))
		return
	}
	s.writeResult(msg.ID, map[string]any{})
}

func (s *Server) handleToolsList(msg *api.JSONRPCMessage) {
	if err := s.sess.CheckDispatch(); err != nil {
		s.write(jsonrpc.NewError(msg.ID, api.CodeInvalidRequest, err.Error()))
		return
	}
	s.writeResult(msg.ID, map[string]any{"tools": s.svc.Registry().Descriptors()})
}

func (s *Server) handleToolsCall(msg *api.JSONRPCMessage) {
	if err := s.sess.CheckDispatch(); err != nil {
		s.logger.Warn("tool call rejected", "state", s.sess.State())
		s.write(jsonrpc.NewError(msg.ID, api.CodeInvalidRequest, err.Error()))
		return
	}

	tc, err := jsonrpc.ExtractToolCall(msg)
	if err != nil {
		s.write(jsonrpc.NewError(msg.ID, api.CodeInvalidParams, err.Error()))
		return
	}

	// Each call runs in its own goroutine so a 300-second promotion never
	// blocks a health check. The call context is deliberately not derived
	// from the run context: shutdown drains in-flight calls via wg.Wait,
	// each bounded by its own tool timeout, instead of killing their
	// subprocesses mid-flight.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runTool(context.Background(), msg.ID, tc)
	}()
}

func (s *Server) runTool(ctx context.Context, id json.RawMessage, tc *api.ToolCallParams) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool handler panicked", "tool", tc.Name, "panic", r)
			s.write(jsonrpc.NewError(id, api.CodeInternalError, fmt.Sprintf("internal error in %s", tc.Name)))
		}
	}()

	result, err := s.svc.Dispatch(ctx, tc.Name, tc.Arguments)
	if err != nil {
		code, message := tools.MapError(err)
		s.logger.Warn("tool call failed",
			"tool", tc.Name,
			"code", code,
			"error", err,
		)
		s.write(jsonrpc.NewError(id, code, message))
		return
	}
	s.writeResult(id, result)
}

func (s *Server) writeResult(id json.RawMessage, result any) bool {
	resp, err := jsonrpc.NewResult(id, result)
	if err != nil {
		s.logger.Error("marshaling result", "error", err)
		s.write(jsonrpc.NewError(id, api.CodeInternalError, "failed to encode result"))
		return false
	}
	return s.write(resp)
}

// write puts one whole message plus newline on the output stream under the
// writer lock, flushed before the lock is released.
func (s *Server) write(msg *api.JSONRPCMessage) bool {
	data, err := jsonrpc.Marshal(msg)
	if err != nil {
		s.logger.Error("marshaling message", "error", err)
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.out.Write(data); err != nil {
		s.logger.Error("writing response", "error", err)
		return false
	}
	if err := s.out.WriteByte('\n'); err != nil {
		s.logger.Error("writing response", "error", err)
		return false
	}
	if err := s.out.Flush(); err != nil {
		s.logger.Error("flushing response", "error", err)
		return false
	}
	return true
}
