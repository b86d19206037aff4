package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vit0-9/domain_mcp/pkg/tools"
)

const (
	serverName     = "domain-mcp"
	maxMessageSize = 4 << 20
)

// Server speaks MCP over newline-delimited JSON-RPC. Requests are handled
// one at a time in arrival order.
type Server struct {
	dispatcher *tools.Dispatcher
	logger     *slog.Logger
	version    string
	tools      map[string]any
}

func NewServer(dispatcher *tools.Dispatcher, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher: dispatcher,
		logger:     logger,
		version:    version,
		tools:      map[string]any{"tools": tools.Definitions()},
	}
}

// Serve reads requests from r and writes responses to w until r is
// exhausted or ctx is done. A cancelled ctx returns promptly even while r
// blocks; the reader goroutine is abandoned.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	enc := json.NewEncoder(w)
	s.logger.Info("mcp server listening on stdio", "protocol", ProtocolVersion)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read request: %w", err)
				}
				return nil
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			resp := s.Handle(ctx, line)
			if resp == nil {
				continue
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}

// Handle processes one raw message. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, line []byte) *Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(nil, CodeParseError, "parse error: "+err.Error())
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		if req.IsNotification() {
			s.logger.Debug("dropping malformed notification", "method", req.Method)
			return nil
		}
		return errorResponse(req.ID, CodeInvalidRequest, "invalid request")
	}

	result, rpcErr := s.route(ctx, &req)
	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return &Response{JSONRPC: jsonRPCVersion, ID: req.ID, Error: rpcErr}
	}
	return &Response{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result}
}

func (s *Server) route(ctx context.Context, req *Request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.initialize(), nil
	case "notifications/initialized", "notifications/cancelled":
		return nil, nil
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return s.tools, nil
	case "tools/call":
		return s.callTool(ctx, req.Params)
	default:
		s.logger.Debug("unknown method", "method", req.Method)
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

func (s *Server) initialize() InitializeResult {
	names := make([]string, 0, len(tools.AllTools))
	for _, name := range tools.AllTools {
		names = append(names, string(name))
	}
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      ServerInfo{Name: serverName, Version: s.version},
		Instructions:    "Domain intelligence tools: " + strings.Join(names, ", "),
	}
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	var params ToolsCallParams
	if len(raw) == 0 {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
	}

	out, err := s.dispatcher.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return CallResult(out), nil
}

// CallResult wraps a dispatcher outcome in the tools/call envelope.
func CallResult(out *tools.Outcome) ToolsCallResult {
	if out.Err != nil {
		structured := map[string]any{"error": out.Err}
		return ToolsCallResult{
			Content:           []ContentBlock{{Type: "text", Text: prettyJSON(structured)}},
			StructuredContent: structured,
			IsError:           true,
		}
	}
	return ToolsCallResult{
		Content:           []ContentBlock{{Type: "text", Text: prettyJSON(out.Payload)}},
		StructuredContent: out.Payload,
	}
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
}
