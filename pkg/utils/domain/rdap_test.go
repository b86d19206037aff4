package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const rdapExample = `{
  "objectClassName": "domain",
  "ldhName": "EXAMPLE.COM",
  "status": ["client delete prohibited", "client transfer prohibited"],
  "events": [
    {"eventAction": "registration", "eventDate": "1995-08-14T04:00:00Z"},
    {"eventAction": "expiration", "eventDate": "2026-08-13T04:00:00Z"},
    {"eventAction": "last changed", "eventDate": "2024-08-14T07:01:34Z"}
  ],
  "entities": [
    {
      "objectClassName": "entity",
      "handle": "376",
      "roles": ["registrar"],
      "vcardArray": ["vcard", [["version", {}, "text", "4.0"], ["fn", {}, "text", "RESERVED-Internet Assigned Numbers Authority"]]]
    }
  ],
  "nameservers": [
    {"objectClassName": "nameserver", "ldhName": "A.IANA-SERVERS.NET"},
    {"objectClassName": "nameserver", "ldhName": "B.IANA-SERVERS.NET"}
  ]
}`

func newTestRDAP(srv *httptest.Server) *RDAPClient {
	return &RDAPClient{
		HTTP:         srv.Client(),
		Servers:      map[string]string{"com": srv.URL},
		BootstrapURL: srv.URL + "/bootstrap",
		Timeout:      2 * time.Second,
	}
}

func TestRDAPLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/domain/example.com" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Accept"); got != "application/rdap+json" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "application/rdap+json")
		fmt.Fprint(w, rdapExample)
	}))
	defer srv.Close()

	rec, err := newTestRDAP(srv).Lookup(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &RegistrationRecord{
		Domain:       "example.com",
		Registrar:    "RESERVED-Internet Assigned Numbers Authority",
		CreationDate: time.Date(1995, 8, 14, 4, 0, 0, 0, time.UTC),
		ExpiryDate:   time.Date(2026, 8, 13, 4, 0, 0, 0, time.UTC),
		UpdatedDate:  time.Date(2024, 8, 14, 7, 1, 34, 0, time.UTC),
		NameServers:  []string{"a.iana-servers.net", "b.iana-servers.net"},
		Status:       []string{"client delete prohibited", "client transfer prohibited"},
		Source:       "rdap",
		Endpoint:     srv.URL + "/domain/example.com",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestRDAPErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{name: "not found", status: http.StatusNotFound, wantKind: KindNotFound},
		{name: "server error", status: http.StatusServiceUnavailable, wantKind: KindTransport},
		{name: "bad json", status: http.StatusOK, body: "<html>", wantKind: KindParse},
		{name: "wrong object", status: http.StatusOK, body: `{"objectClassName":"entity"}`, wantKind: KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestRDAP(srv).Lookup(context.Background(), "example.com")
			if !IsKind(err, tt.wantKind) {
				t.Fatalf("error = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestRDAPTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := newTestRDAP(srv)
	client.Timeout = 50 * time.Millisecond

	_, err := client.Lookup(context.Background(), "example.com")
	if !IsKind(err, KindTimeout) {
		t.Fatalf("error = %v, want Timeout", err)
	}
}

func TestRDAPBootstrap(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bootstrap":
			fmt.Fprintf(w, `{"services": [[["xyz", "abc"], ["http://plain.invalid/", "%s/xyz/"]]]}`, srv.URL)
		case "/xyz/domain/example.xyz":
			fmt.Fprint(w, rdapExample)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestRDAP(srv)

	rec, err := client.Lookup(context.Background(), "example.xyz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Endpoint != srv.URL+"/xyz/domain/example.xyz" {
		t.Errorf("endpoint = %q", rec.Endpoint)
	}

	_, err = client.Lookup(context.Background(), "example.zzz")
	if !IsKind(err, KindUnsupported) || !errors.Is(err, ErrUnsupportedTLD) {
		t.Fatalf("error = %v, want unsupported tld", err)
	}
}

func TestRegistrarFallsBackToHandle(t *testing.T) {
	entities := []rdapEntity{
		{Handle: "tech-1", Roles: []string{"technical"}},
		{Handle: "292", Roles: []string{"registrar"}},
	}
	if got := registrarName(entities); got != "292" {
		t.Errorf("registrarName = %q, want handle 292", got)
	}
}
