// Package tools defines the closed set of domain tools, their argument
// schemas and the dispatcher that routes a call to its backend.
package tools

import (
	"github.com/invopop/jsonschema"
)

// ToolName identifies one callable tool. The set is fixed at compile time.
type ToolName string

const (
	WhoisLookup             ToolName = "whois_lookup"
	DNSLookup               ToolName = "dns_lookup"
	CheckDomainAvailability ToolName = "check_domain_availability"
	SSLCertificateInfo      ToolName = "ssl_certificate_info"
	SearchExpiredDomains    ToolName = "search_expired_domains"
	DomainAgeCheck          ToolName = "domain_age_check"
	BulkDomainCheck         ToolName = "bulk_domain_check"
	GetDNSRecords           ToolName = "get_dns_records"
)

// AllTools lists every tool in presentation order.
var AllTools = []ToolName{
	WhoisLookup,
	DNSLookup,
	CheckDomainAvailability,
	SSLCertificateInfo,
	SearchExpiredDomains,
	DomainAgeCheck,
	BulkDomainCheck,
	GetDNSRecords,
}

// ParseToolName maps a wire name onto the enumeration.
func ParseToolName(s string) (ToolName, bool) {
	for _, name := range AllTools {
		if string(name) == s {
			return name, true
		}
	}
	return "", false
}

// Definition is what tools/list advertises for one tool.
type Definition struct {
	Name        ToolName       `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Describe returns the description and a zero argument value for name.
func Describe(name ToolName) (string, any) {
	switch name {
	case WhoisLookup:
		return "Perform a WHOIS/RDAP registration lookup for a domain", DomainArgs{}
	case DNSLookup:
		return "Perform a DNS lookup for a domain (A, AAAA, MX, NS, TXT, CNAME, SOA)", DomainArgs{}
	case CheckDomainAvailability:
		return "Check if a domain is available for registration", DomainArgs{}
	case SSLCertificateInfo:
		return "Get SSL/TLS certificate information for a domain", DomainArgs{}
	case SearchExpiredDomains:
		return "Search for available domains built from a keyword", SearchArgs{}
	case DomainAgeCheck:
		return "Check the age of a domain from its registration date", DomainArgs{}
	case BulkDomainCheck:
		return "Check availability of multiple domains at once", BulkArgs{}
	case GetDNSRecords:
		return "Get DNS records of the requested types for a domain", RecordArgs{}
	}
	return "", nil
}

// Definitions returns the definition of every tool.
func Definitions() []Definition {
	defs := make([]Definition, 0, len(AllTools))
	for _, name := range AllTools {
		description, args := Describe(name)
		defs = append(defs, Definition{
			Name:        name,
			Description: description,
			InputSchema: inputSchema(args),
		})
	}
	return defs
}

func inputSchema(args any) map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(args)
	paramSchema := map[string]any{
		"type":                 "object",
		"properties":           schema.Properties,
		"additionalProperties": false,
	}
	if len(schema.Required) > 0 {
		paramSchema["required"] = schema.Required
	}
	return paramSchema
}
