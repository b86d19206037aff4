package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vit0-9/domain_mcp/config"
	"github.com/vit0-9/domain_mcp/pkg/utils/domain"
)

func testApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewApp(newDispatcher(config.Defaults(), logger), logger)
}

func TestRoutes(t *testing.T) {
	app := testApp(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{http.MethodGet, "/api/v1/tools", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/v1/tools/whois_lookup", `{"domain":"not a domain"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/tools/nope", `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		app.Router.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestNewDomainClientWiring(t *testing.T) {
	cfg := config.Defaults()
	cfg.Resolver = "system"
	cfg.WhoisBinary = "/usr/local/bin/whois"
	cfg.RDAPServers = map[string]string{"xyz": "https://rdap.centralnic.com/xyz"}
	cfg.Bulk.MaxDomains = 25

	client := newDomainClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, ok := client.DNS.Resolver.(*domain.SystemResolver); !ok {
		t.Errorf("resolver = %T, want system", client.DNS.Resolver)
	}
	rdap, ok := client.Primary.(*domain.RDAPClient)
	if !ok || rdap.Servers["xyz"] != "https://rdap.centralnic.com/xyz" || rdap.Servers["com"] == "" {
		t.Errorf("primary = %#v", client.Primary)
	}
	whois, ok := client.Secondary.(*domain.WhoisCommand)
	if !ok || whois.Binary != "/usr/local/bin/whois" {
		t.Errorf("secondary = %#v", client.Secondary)
	}
	if client.MaxBulk != 25 || client.Certs.Port != 443 || client.OnFallback == nil {
		t.Errorf("client = %+v", client)
	}
}

func TestCallCommandRejectsBadArguments(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"call", "whois_lookup", `{"domain":"not a domain"}`})

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("expected the call to fail")
	}

	var result map[string]map[string]any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output %q is not JSON: %v", out.String(), err)
	}
	if result["error"]["kind"] != string(domain.KindValidation) {
		t.Errorf("output = %v", result)
	}
}

func TestToolsCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"tools"})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var defs []map[string]any
	if err := json.Unmarshal(out.Bytes(), &defs); err != nil {
		t.Fatal(err)
	}
	if len(defs) != 8 {
		t.Errorf("got %d tools, want 8", len(defs))
	}
}

func TestServeCommandSpeaksMCP(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"serve", "--log-level", "error"})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != `{"jsonrpc":"2.0","id":1,"result":{}}` {
		t.Errorf("response = %s", got)
	}
}

func TestServeCommandExitsOnSignal(t *testing.T) {
	in, stdin := io.Pipe()
	defer stdin.Close()

	cmd := newRootCmd()
	cmd.SetIn(in)
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"serve", "--log-level", "error"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("shutdown returned %v, want a clean exit", err)
	}
}
