package domain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const whoisExample = `   Domain Name: EXAMPLE.COM
   Registry Domain ID: 2336799_DOMAIN_COM-VRSN
   Registrar WHOIS Server: whois.iana.org
   Registrar URL: http://res-dom.iana.org
   Updated Date: 2024-08-14T07:01:34Z
   Creation Date: 1995-08-14T04:00:00Z
   Registry Expiry Date: 2025-08-13T04:00:00Z
   Registrar: RESERVED-Internet Assigned Numbers Authority
   Registrar IANA ID: 376
   Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
   Domain Status: clientTransferProhibited https://icann.org/epp#clientTransferProhibited
   Name Server: A.IANA-SERVERS.NET
   Name Server: B.IANA-SERVERS.NET
   DNSSEC: signedDelegation
>>> Last update of whois database: 2024-10-01T12:00:00Z <<<
`

func TestWhoisCommandLookup(t *testing.T) {
	runner := &fakeRunner{out: []byte(whoisExample)}
	w := NewWhoisCommand(runner, time.Second)

	rec, err := w.Lookup(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([][]string{{"whois", "example.com"}}, runner.calls); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}

	want := &RegistrationRecord{
		Domain:       "example.com",
		Registrar:    "RESERVED-Internet Assigned Numbers Authority",
		CreationDate: time.Date(1995, 8, 14, 4, 0, 0, 0, time.UTC),
		ExpiryDate:   time.Date(2025, 8, 13, 4, 0, 0, 0, time.UTC),
		UpdatedDate:  time.Date(2024, 8, 14, 7, 1, 34, 0, time.UTC),
		NameServers:  []string{"a.iana-servers.net", "b.iana-servers.net"},
		Status:       []string{"clientDeleteProhibited", "clientTransferProhibited"},
		Source:       "whois",
		Endpoint:     "whois example.com",
		RawData:      whoisExample,
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestWhoisCommandRegisteredWithNotFoundField(t *testing.T) {
	out := "Registrar: Example Registrar, Inc.\nCreation Date: 1995-08-14T04:00:00Z\nName Server: ns1.example.com\nRegistrant Fax: Not Found\n"
	w := NewWhoisCommand(&fakeRunner{out: []byte(out)}, time.Second)

	rec, err := w.Lookup(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("a registered answer must parse, got %v", err)
	}
	if rec.Registrar != "Example Registrar, Inc." || len(rec.NameServers) != 1 {
		t.Errorf("record = %+v", rec)
	}
}

func TestWhoisCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		err      error
		wantKind ErrorKind
	}{
		{name: "no match", out: "No match for \"NOPE-EXAMPLE.COM\".\n", wantKind: KindNotFound},
		{name: "status free", out: "Domain: nope.de\nStatus: free\n", wantKind: KindNotFound},
		{name: "not found line", out: "% whois.example\nNOT FOUND\n", wantKind: KindNotFound},
		{name: "not found inside a field", out: "Registrant Fax: Not Found\n", wantKind: KindParse},
		{name: "empty output", out: "   \n", wantKind: KindParse},
		{name: "unrecognized", out: "Rate limit exceeded, try later\n", wantKind: KindParse},
		{name: "missing binary", err: fmt.Errorf("command not found: whois: %w", exec.ErrNotFound), wantKind: KindUnsupported},
		{name: "deadline", err: context.DeadlineExceeded, wantKind: KindTimeout},
		{name: "exit failure", err: errors.New("whois: exit status 2"), wantKind: KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWhoisCommand(&fakeRunner{out: []byte(tt.out), err: tt.err}, time.Second)
			_, err := w.Lookup(context.Background(), "nope-example.com")
			if !IsKind(err, tt.wantKind) {
				t.Fatalf("error = %v, want kind %s", err, tt.wantKind)
			}
			var le *LookupError
			if errors.As(err, &le) && le.Tier != TierSecondary {
				t.Errorf("tier = %q, want secondary", le.Tier)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2021-03-04", "04-Mar-2021", "2021/03/04", "2021.03.04", "04.03.2021"} {
		if got := parseDate(in); !got.Equal(want) {
			t.Errorf("parseDate(%q) = %v, want %v", in, got, want)
		}
	}
	if got := parseDate("not a date"); !got.IsZero() {
		t.Errorf("parseDate(garbage) = %v, want zero", got)
	}
}
