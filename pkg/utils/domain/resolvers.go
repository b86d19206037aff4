package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vit0-9/domain_mcp/pkg/utils"
)

// DefaultDoHEndpoint is Cloudflare's JSON DNS-over-HTTPS API.
const DefaultDoHEndpoint = "https://cloudflare-dns.com/dns-query"

var rrTypeNumbers = map[RecordType]int{
	TypeA:     1,
	TypeNS:    2,
	TypeCNAME: 5,
	TypeSOA:   6,
	TypeMX:    15,
	TypeTXT:   16,
	TypeAAAA:  28,
}

const (
	rcodeNoError  = 0
	rcodeNXDomain = 3
)

// DoHResolver speaks the application/dns-json dialect of DNS-over-HTTPS.
type DoHResolver struct {
	HTTP     *http.Client
	Endpoint string
}

// NewDoHResolver returns a resolver for endpoint (DefaultDoHEndpoint when empty).
func NewDoHResolver(endpoint string, timeout time.Duration) *DoHResolver {
	if endpoint == "" {
		endpoint = DefaultDoHEndpoint
	}
	return &DoHResolver{HTTP: utils.NewHTTPClient(timeout), Endpoint: endpoint}
}

type dohResponse struct {
	Status int         `json:"Status"`
	Answer []dohAnswer `json:"Answer"`
}

type dohAnswer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	TTL  int    `json:"TTL"`
	Data string `json:"data"`
}

func (r *DoHResolver) Query(ctx context.Context, name string, rtype RecordType) ([]string, error) {
	number, ok := rrTypeNumbers[rtype]
	if !ok {
		return nil, &LookupError{Kind: KindValidation, Op: "dns", Domain: name, Err: fmt.Errorf("unsupported record type: %s", rtype)}
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("type", string(rtype))
	endpoint := r.Endpoint + "?" + q.Encode()

	res, err := utils.FetchURL(ctx, r.HTTP, endpoint, "application/dns-json")
	if err != nil {
		return nil, &LookupError{Kind: classify(err), Op: "dns", Domain: name, Source: r.Endpoint, Err: err}
	}
	if res.StatusCode != http.StatusOK {
		return nil, &LookupError{Kind: KindTransport, Op: "dns", Domain: name, Source: r.Endpoint, Err: fmt.Errorf("resolver returned status: %s", res.Status)}
	}

	var doc dohResponse
	if err := json.Unmarshal(res.Body, &doc); err != nil {
		return nil, &LookupError{Kind: KindParse, Op: "dns", Domain: name, Source: r.Endpoint, Err: fmt.Errorf("decode dns-json response: %w", err)}
	}

	switch doc.Status {
	case rcodeNoError:
	case rcodeNXDomain:
		return nil, &LookupError{Kind: KindNotFound, Op: "dns", Domain: name, Source: r.Endpoint, Err: errors.New("NXDOMAIN")}
	default:
		return nil, &LookupError{Kind: KindTransport, Op: "dns", Domain: name, Source: r.Endpoint, Err: fmt.Errorf("resolver returned rcode %d for %s", doc.Status, rtype)}
	}

	values := []string{}
	for _, ans := range doc.Answer {
		// A and AAAA answers include the CNAME chain that led to them.
		if ans.Type != number {
			continue
		}
		values = append(values, formatRData(rtype, ans.Data))
	}
	return values, nil
}

func formatRData(rtype RecordType, data string) string {
	data = strings.TrimSpace(data)
	switch rtype {
	case TypeTXT:
		return unquoteTXT(data)
	case TypeNS, TypeCNAME:
		return strings.TrimSuffix(data, ".")
	case TypeMX:
		fields := strings.Fields(data)
		if len(fields) == 2 {
			return fields[0] + " " + strings.TrimSuffix(fields[1], ".")
		}
		return data
	case TypeSOA:
		fields := strings.Fields(data)
		if len(fields) == 7 {
			fields[0] = strings.TrimSuffix(fields[0], ".")
			fields[1] = strings.TrimSuffix(fields[1], ".")
			return strings.Join(fields, " ")
		}
		return data
	default:
		return data
	}
}

// unquoteTXT joins the character-strings of a TXT rdata:
// "\"v=spf1 \" \"-all\"" becomes "v=spf1 -all".
func unquoteTXT(data string) string {
	if !strings.HasPrefix(data, `"`) {
		return data
	}
	var b strings.Builder
	inQuote, escaped := false, false
	for _, r := range data {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case inQuote:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SystemResolver uses the host's resolver configuration. It cannot answer
// SOA questions and reports missing names as empty answers.
type SystemResolver struct {
	Resolver *net.Resolver
}

func (s *SystemResolver) Query(ctx context.Context, name string, rtype RecordType) ([]string, error) {
	r := s.Resolver
	if r == nil {
		r = net.DefaultResolver
	}

	values := []string{}
	var err error

	switch rtype {
	case TypeA, TypeAAAA:
		network := "ip4"
		if rtype == TypeAAAA {
			network = "ip6"
		}
		var ips []net.IP
		ips, err = r.LookupIP(ctx, network, name)
		for _, ip := range ips {
			values = append(values, ip.String())
		}
	case TypeMX:
		var mxs []*net.MX
		mxs, err = r.LookupMX(ctx, name)
		for _, mx := range mxs {
			values = append(values, fmt.Sprintf("%d %s", mx.Pref, strings.TrimSuffix(mx.Host, ".")))
		}
	case TypeNS:
		var nss []*net.NS
		nss, err = r.LookupNS(ctx, name)
		for _, ns := range nss {
			values = append(values, strings.TrimSuffix(ns.Host, "."))
		}
	case TypeTXT:
		values, err = r.LookupTXT(ctx, name)
		if values == nil {
			values = []string{}
		}
	case TypeCNAME:
		var cname string
		cname, err = r.LookupCNAME(ctx, name)
		// LookupCNAME returns the name itself when there is no alias.
		if cname = strings.TrimSuffix(cname, "."); cname != "" && cname != name {
			values = append(values, cname)
		}
	case TypeSOA:
		return nil, &LookupError{Kind: KindUnsupported, Op: "dns", Domain: name, Source: "system resolver", Err: errors.New("SOA queries need the DNS-over-HTTPS resolver")}
	default:
		return nil, &LookupError{Kind: KindValidation, Op: "dns", Domain: name, Err: fmt.Errorf("unsupported record type: %s", rtype)}
	}

	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return []string{}, nil
		}
		return nil, &LookupError{Kind: classify(err), Op: "dns", Domain: name, Source: "system resolver", Err: err}
	}
	return values, nil
}
