package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vit0-9/domain_mcp/pkg/utils"
)

// DefaultBootstrapURL is the IANA RDAP bootstrap registry for DNS names.
const DefaultBootstrapURL = "https://data.iana.org/rdap/dns.json"

// RDAPServers maps TLDs to RDAP base URLs. TLDs not listed here are
// resolved through the bootstrap registry.
var RDAPServers = map[string]string{
	"com":   "https://rdap.verisign.com/com/v1",
	"net":   "https://rdap.verisign.com/net/v1",
	"org":   "https://rdap.publicinterestregistry.org/rdap",
	"info":  "https://rdap.afilias.net/rdap",
	"io":    "https://rdap.nic.io",
	"co":    "https://rdap.nic.co",
	"me":    "https://rdap.nic.me",
	"tv":    "https://rdap.nic.tv",
	"app":   "https://rdap.nic.google",
	"dev":   "https://rdap.nic.google",
	"cloud": "https://rdap.nic.google",
}

// RDAPClient queries registry RDAP servers. It is the primary
// registration source.
type RDAPClient struct {
	HTTP         *http.Client
	Servers      map[string]string
	BootstrapURL string
	Timeout      time.Duration
}

// NewRDAPClient builds a client with the static server map, overlaid with
// any extra TLD endpoints.
func NewRDAPClient(timeout time.Duration, extra map[string]string) *RDAPClient {
	servers := make(map[string]string, len(RDAPServers)+len(extra))
	for tld, base := range RDAPServers {
		servers[tld] = base
	}
	for tld, base := range extra {
		servers[strings.ToLower(strings.TrimPrefix(tld, "."))] = base
	}
	return &RDAPClient{
		HTTP:         utils.NewHTTPClient(timeout),
		Servers:      servers,
		BootstrapURL: DefaultBootstrapURL,
		Timeout:      timeout,
	}
}

type rdapDomain struct {
	ObjectClassName string       `json:"objectClassName"`
	LDHName         string       `json:"ldhName"`
	Status          []string     `json:"status"`
	Events          []rdapEvent  `json:"events"`
	Entities        []rdapEntity `json:"entities"`
	Nameservers     []struct {
		LDHName string `json:"ldhName"`
	} `json:"nameservers"`
}

type rdapEvent struct {
	Action string `json:"eventAction"`
	Date   string `json:"eventDate"`
}

type rdapEntity struct {
	Handle     string          `json:"handle"`
	Roles      []string        `json:"roles"`
	VCardArray json.RawMessage `json:"vcardArray"`
	Entities   []rdapEntity    `json:"entities"`
}

type rdapBootstrap struct {
	Services [][][]string `json:"services"`
}

// Lookup fetches and normalizes the RDAP domain object for name.
func (c *RDAPClient) Lookup(ctx context.Context, name string) (*RegistrationRecord, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	base, err := c.baseURL(ctx, name)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSuffix(base, "/") + "/domain/" + name
	res, err := utils.FetchURL(ctx, c.HTTP, endpoint, "application/rdap+json")
	if err != nil {
		return nil, c.fail(classify(err), name, endpoint, err)
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, c.fail(KindNotFound, name, endpoint, fmt.Errorf("registry has no record of %s", name))
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, c.fail(KindTransport, name, endpoint, fmt.Errorf("rdap server returned status: %s", res.Status))
	}

	var doc rdapDomain
	if err := json.Unmarshal(res.Body, &doc); err != nil {
		return nil, c.fail(KindParse, name, endpoint, fmt.Errorf("decode rdap response: %w", err))
	}
	if doc.ObjectClassName != "" && doc.ObjectClassName != "domain" {
		return nil, c.fail(KindParse, name, endpoint, fmt.Errorf("unexpected rdap object class %q", doc.ObjectClassName))
	}

	return doc.record(name, endpoint), nil
}

func (c *RDAPClient) baseURL(ctx context.Context, name string) (string, error) {
	tld := TLD(name)
	if base, ok := c.Servers[tld]; ok {
		return base, nil
	}

	res, err := utils.FetchURL(ctx, c.HTTP, c.BootstrapURL, "application/json")
	if err != nil {
		return "", c.fail(classify(err), name, c.BootstrapURL, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", c.fail(KindTransport, name, c.BootstrapURL, fmt.Errorf("bootstrap returned status: %s", res.Status))
	}

	var boot rdapBootstrap
	if err := json.Unmarshal(res.Body, &boot); err != nil {
		return "", c.fail(KindParse, name, c.BootstrapURL, fmt.Errorf("decode bootstrap registry: %w", err))
	}
	for _, service := range boot.Services {
		if len(service) < 2 || len(service[1]) == 0 {
			continue
		}
		for _, candidate := range service[0] {
			if strings.EqualFold(candidate, tld) {
				return preferHTTPS(service[1]), nil
			}
		}
	}
	return "", c.fail(KindUnsupported, name, c.BootstrapURL, fmt.Errorf("%w: .%s has no rdap service", ErrUnsupportedTLD, tld))
}

func (c *RDAPClient) fail(kind ErrorKind, name, source string, err error) *LookupError {
	return &LookupError{Kind: kind, Op: "rdap", Domain: name, Source: source, Tier: TierPrimary, Err: err}
}

func preferHTTPS(urls []string) string {
	for _, u := range urls {
		if strings.HasPrefix(u, "https://") {
			return u
		}
	}
	return urls[0]
}

func (d *rdapDomain) record(name, endpoint string) *RegistrationRecord {
	rec := &RegistrationRecord{
		Domain:   name,
		Source:   "rdap",
		Endpoint: endpoint,
		Status:   removeDuplicates(d.Status),
	}
	if rec.Status == nil {
		rec.Status = []string{}
	}

	for _, ev := range d.Events {
		date := parseDate(ev.Date)
		if date.IsZero() {
			continue
		}
		switch strings.ToLower(ev.Action) {
		case "registration":
			rec.CreationDate = date
		case "expiration":
			rec.ExpiryDate = date
		case "last changed":
			rec.UpdatedDate = date
		}
	}

	rec.Registrar = registrarName(d.Entities)

	nameServers := make([]string, 0, len(d.Nameservers))
	for _, ns := range d.Nameservers {
		if ns.LDHName != "" {
			nameServers = append(nameServers, strings.TrimSuffix(strings.ToLower(ns.LDHName), "."))
		}
	}
	rec.NameServers = removeDuplicates(nameServers)
	return rec
}

// registrarName returns the vCard "fn" of the registrar entity, falling
// back to its handle.
func registrarName(entities []rdapEntity) string {
	for _, e := range entities {
		isRegistrar := false
		for _, role := range e.Roles {
			if strings.EqualFold(role, "registrar") {
				isRegistrar = true
				break
			}
		}
		if !isRegistrar {
			if name := registrarName(e.Entities); name != "" {
				return name
			}
			continue
		}
		if fn := vcardField(e.VCardArray, "fn"); fn != "" {
			return fn
		}
		return e.Handle
	}
	return ""
}

// vcardField pulls a text property out of a jCard:
// ["vcard", [["version", {}, "text", "4.0"], ["fn", {}, "text", "Name"]]]
func vcardField(raw json.RawMessage, field string) string {
	if len(raw) == 0 {
		return ""
	}
	var card []json.RawMessage
	if err := json.Unmarshal(raw, &card); err != nil || len(card) < 2 {
		return ""
	}
	var props [][]json.RawMessage
	if err := json.Unmarshal(card[1], &props); err != nil {
		return ""
	}
	for _, prop := range props {
		if len(prop) < 4 {
			continue
		}
		var key, value string
		if json.Unmarshal(prop[0], &key) != nil || !strings.EqualFold(key, field) {
			continue
		}
		if json.Unmarshal(prop[3], &value) == nil {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
