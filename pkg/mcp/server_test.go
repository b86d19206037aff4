package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vit0-9/domain_mcp/pkg/tools"
	"github.com/vit0-9/domain_mcp/pkg/utils/domain"
)

type stubRegistry struct{}

func (stubRegistry) Lookup(_ context.Context, name string) (*domain.RegistrationRecord, error) {
	if name == "unregistered-example.com" {
		return nil, &domain.LookupError{Kind: domain.KindNotFound, Op: "rdap", Domain: name, Err: errors.New("404")}
	}
	return &domain.RegistrationRecord{
		Domain:       name,
		Registrar:    "Example Registrar",
		CreationDate: time.Date(1995, 8, 14, 4, 0, 0, 0, time.UTC),
		NameServers:  []string{"a.iana-servers.net"},
		Status:       []string{},
		Source:       "rdap",
	}, nil
}

func newTestServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &domain.Client{Primary: stubRegistry{}, Logger: logger}
	return NewServer(tools.NewDispatcher(client, tools.WithLogger(logger)), logger, "test")
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// exchange feeds lines through Serve and returns every response written.
func exchange(t *testing.T, lines ...string) []wireResponse {
	t.Helper()

	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := newTestServer().Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("serve: %v", err)
	}

	var responses []wireResponse
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp wireResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("response %q is not JSON: %v", scanner.Text(), err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func single(t *testing.T, line string) wireResponse {
	t.Helper()
	responses := exchange(t, line)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].JSONRPC != "2.0" {
		t.Errorf("jsonrpc = %q", responses[0].JSONRPC)
	}
	return responses[0]
}

func TestInitialize(t *testing.T) {
	resp := single(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if string(resp.ID) != "1" {
		t.Errorf("id = %s, want 1", resp.ID)
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.ProtocolVersion != ProtocolVersion {
		t.Errorf("protocolVersion = %q", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "domain-mcp" || result.ServerInfo.Version != "test" {
		t.Errorf("serverInfo = %+v", result.ServerInfo)
	}
	if _, ok := result.Capabilities["tools"]; !ok {
		t.Errorf("capabilities = %v, want tools", result.Capabilities)
	}
}

func TestPingAndStringIDs(t *testing.T) {
	resp := single(t, `{"jsonrpc":"2.0","id":"abc-1","method":"ping"}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if string(resp.ID) != `"abc-1"` {
		t.Errorf("id = %s, want the string id echoed", resp.ID)
	}
	if string(resp.Result) != "{}" {
		t.Errorf("result = %s, want {}", resp.Result)
	}
}

func TestToolsList(t *testing.T) {
	resp := single(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	var result struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		if tool.InputSchema["type"] != "object" {
			t.Errorf("%s schema type = %v", tool.Name, tool.InputSchema["type"])
		}
	}
	want := []string{
		"whois_lookup", "dns_lookup", "check_domain_availability", "ssl_certificate_info",
		"search_expired_domains", "domain_age_check", "bulk_domain_check", "get_dns_records",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}
}

func TestToolsCallSuccess(t *testing.T) {
	resp := single(t, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"whois_lookup","arguments":{"domain":"Example.COM"}}}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	var result struct {
		Content           []ContentBlock            `json:"content"`
		StructuredContent domain.RegistrationRecord `json:"structuredContent"`
		IsError           bool                      `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("isError set on success")
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("content = %+v", result.Content)
	}

	var fromText domain.RegistrationRecord
	if err := json.Unmarshal([]byte(result.Content[0].Text), &fromText); err != nil {
		t.Fatalf("text content is not JSON: %v", err)
	}
	if diff := cmp.Diff(result.StructuredContent, fromText); diff != "" {
		t.Errorf("text and structured content differ (-structured +text):\n%s", diff)
	}
	if fromText.Domain != "example.com" || fromText.Tier != domain.TierPrimary {
		t.Errorf("record = %+v", fromText)
	}
}

func TestToolsCallToolError(t *testing.T) {
	resp := single(t, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"dns_lookup","arguments":{"domain":"not a domain"}}}`)
	if resp.Error != nil {
		t.Fatalf("tool failures belong in the result, got rpc error %v", resp.Error)
	}

	var result struct {
		Content           []ContentBlock `json:"content"`
		StructuredContent struct {
			Error tools.ToolError `json:"error"`
		} `json:"structuredContent"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Errorf("isError not set")
	}
	got := result.StructuredContent.Error
	if got.Kind != domain.KindValidation || got.Tool != tools.DNSLookup || got.Message == "" {
		t.Errorf("error = %+v", got)
	}
	if len(result.Content) != 1 || !strings.Contains(result.Content[0].Text, "ValidationError") {
		t.Errorf("content = %+v", result.Content)
	}
}

func TestToolsCallAvailability(t *testing.T) {
	resp := single(t, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"check_domain_availability","arguments":{"domain":"unregistered-example.com"}}}`)

	var result struct {
		StructuredContent domain.Availability `json:"structuredContent"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if !result.StructuredContent.Available {
		t.Errorf("availability = %+v, want available", result.StructuredContent)
	}
}

func TestProtocolErrors(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantCode int
		wantID   string
	}{
		{name: "parse error", line: `{"jsonrpc":"2.0","id":1,"method":`, wantCode: CodeParseError, wantID: "null"},
		{name: "wrong version", line: `{"jsonrpc":"1.0","id":6,"method":"ping"}`, wantCode: CodeInvalidRequest, wantID: "6"},
		{name: "missing method", line: `{"jsonrpc":"2.0","id":7}`, wantCode: CodeInvalidRequest, wantID: "7"},
		{name: "unknown method", line: `{"jsonrpc":"2.0","id":8,"method":"resources/list"}`, wantCode: CodeMethodNotFound, wantID: "8"},
		{name: "unknown tool", line: `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"port_scan","arguments":{}}}`, wantCode: CodeInvalidParams, wantID: "9"},
		{name: "missing params", line: `{"jsonrpc":"2.0","id":10,"method":"tools/call"}`, wantCode: CodeInvalidParams, wantID: "10"},
		{name: "malformed params", line: `{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":5}}`, wantCode: CodeInvalidParams, wantID: "11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := single(t, tt.line)
			if resp.Error == nil {
				t.Fatalf("expected an rpc error, got result %s", resp.Result)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", resp.Error.Code, tt.wantCode)
			}
			if string(resp.ID) != tt.wantID {
				t.Errorf("id = %s, want %s", resp.ID, tt.wantID)
			}
		})
	}
}

func TestNotificationsGetNoResponse(t *testing.T) {
	responses := exchange(t,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"whois_lookup","arguments":{"domain":"example.com"}}}`,
		`{"jsonrpc":"1.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0"}`,
		`{"jsonrpc":"2.0","id":12,"method":"ping"}`,
	)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want only the ping reply", len(responses))
	}
	if string(responses[0].ID) != "12" {
		t.Errorf("id = %s, want 12", responses[0].ID)
	}
}

func TestResponsesKeepRequestOrder(t *testing.T) {
	responses := exchange(t,
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"domain_age_check","arguments":{"domain":"example.com"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
	)
	var ids []string
	for _, r := range responses {
		ids = append(ids, string(r.ID))
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	in, stdin := io.Pipe()
	defer stdin.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- newTestServer().Serve(ctx, in, io.Discard)
	}()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept blocking on an idle reader after cancel")
	}
}
