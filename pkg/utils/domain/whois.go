package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RegistrationRecord is the normalized registration data returned by both
// the RDAP and the legacy whois path.
type RegistrationRecord struct {
	Domain       string    `json:"domain"`
	Registrar    string    `json:"registrar,omitempty"`
	CreationDate time.Time `json:"creation_date,omitzero"`
	ExpiryDate   time.Time `json:"expiry_date,omitzero"`
	UpdatedDate  time.Time `json:"updated_date,omitzero"`
	NameServers  []string  `json:"name_servers"`
	Status       []string  `json:"status"`
	Source       string    `json:"source"` // rdap or whois
	Tier         Tier      `json:"tier"`
	Endpoint     string    `json:"endpoint"`
	RawData      string    `json:"raw_data,omitempty"`
}

// WhoisCommand runs the system whois client. It is the legacy registration
// source used only by the fallback policy.
type WhoisCommand struct {
	Runner  CommandRunner
	Binary  string
	Timeout time.Duration
}

// NewWhoisCommand returns a whois source backed by runner.
func NewWhoisCommand(runner CommandRunner, timeout time.Duration) *WhoisCommand {
	return &WhoisCommand{Runner: runner, Binary: "whois", Timeout: timeout}
}

// notFoundPatterns match whole lines of a registry's "no such domain"
// answer. They are only consulted when no registration field was parsed.
var notFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^no match(?: for)?\b`),
	regexp.MustCompile(`(?i)^(?:domain )?not found\.?$`),
	regexp.MustCompile(`(?i)^no (?:data|entries|object) found\b`),
	regexp.MustCompile(`(?i)^domain name not known\b`),
	regexp.MustCompile(`(?i)^status:\s*(?:free|available)$`),
	regexp.MustCompile(`(?i)^(?:domain )?\S+ is available for registration\b`),
}

// Lookup runs `whois <name>` and parses the text response.
func (w *WhoisCommand) Lookup(ctx context.Context, name string) (*RegistrationRecord, error) {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	binary := w.Binary
	if binary == "" {
		binary = "whois"
	}
	source := commandLine(binary, name)

	out, err := w.Runner.Run(ctx, nil, binary, name)
	if err != nil {
		return nil, &LookupError{Kind: classify(err), Op: "whois", Domain: name, Source: source, Tier: TierSecondary, Err: err}
	}

	rawData := string(out)
	if strings.TrimSpace(rawData) == "" {
		return nil, &LookupError{Kind: KindParse, Op: "whois", Domain: name, Source: source, Tier: TierSecondary, Err: fmt.Errorf("empty response from whois")}
	}

	rec := parseWhoisResponse(name, rawData)
	if rec.Registrar == "" && rec.CreationDate.IsZero() && rec.ExpiryDate.IsZero() && len(rec.NameServers) == 0 {
		if line, ok := notFoundLine(rawData); ok {
			return nil, &LookupError{Kind: KindNotFound, Op: "whois", Domain: name, Source: source, Tier: TierSecondary, Err: fmt.Errorf("whois reports %q", line)}
		}
		return nil, &LookupError{Kind: KindParse, Op: "whois", Domain: name, Source: source, Tier: TierSecondary, Err: fmt.Errorf("no registration fields recognized in whois output")}
	}
	rec.Endpoint = source
	return rec, nil
}

func notFoundLine(rawData string) (string, bool) {
	for _, line := range strings.Split(rawData, "\n") {
		line = strings.TrimSpace(line)
		for _, re := range notFoundPatterns {
			if re.MatchString(line) {
				return line, true
			}
		}
	}
	return "", false
}

var whoisPatterns = map[string]*regexp.Regexp{
	"registrar":     regexp.MustCompile(`(?i)^(?:sponsoring )?registrar(?: name)?:\s*(.+)$`),
	"creation_date": regexp.MustCompile(`(?i)^(?:creation date|created(?: on)?|domain registration date|registered(?: on)?|registration time):\s*(.+)$`),
	"expiry_date":   regexp.MustCompile(`(?i)^(?:registry expiry date|registrar registration expiration date|expiry date|expiration date|expires(?: on)?|paid-till|expiration time):\s*(.+)$`),
	"updated_date":  regexp.MustCompile(`(?i)^(?:updated date|last updated(?: on)?|last modified|modified|changed):\s*(.+)$`),
	"name_server":   regexp.MustCompile(`(?i)^(?:name server|nserver|nameservers?):\s*(.+)$`),
	"status":        regexp.MustCompile(`(?i)^(?:domain )?status:\s*(.+)$`),
}

// parseWhoisResponse extracts structured data from raw whois text.
func parseWhoisResponse(domain, rawData string) *RegistrationRecord {
	info := &RegistrationRecord{
		Domain:  domain,
		Source:  "whois",
		RawData: rawData,
	}

	for _, line := range strings.Split(rawData, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ">>>") {
			continue
		}

		if match := whoisPatterns["registrar"].FindStringSubmatch(line); len(match) > 1 && info.Registrar == "" {
			info.Registrar = strings.TrimSpace(match[1])
		}
		if match := whoisPatterns["creation_date"].FindStringSubmatch(line); len(match) > 1 && info.CreationDate.IsZero() {
			info.CreationDate = parseDate(match[1])
		}
		if match := whoisPatterns["expiry_date"].FindStringSubmatch(line); len(match) > 1 && info.ExpiryDate.IsZero() {
			info.ExpiryDate = parseDate(match[1])
		}
		if match := whoisPatterns["updated_date"].FindStringSubmatch(line); len(match) > 1 && info.UpdatedDate.IsZero() {
			info.UpdatedDate = parseDate(match[1])
		}
		if match := whoisPatterns["name_server"].FindStringSubmatch(line); len(match) > 1 {
			if fields := strings.Fields(match[1]); len(fields) > 0 {
				info.NameServers = append(info.NameServers, strings.TrimSuffix(strings.ToLower(fields[0]), "."))
			}
		}
		if match := whoisPatterns["status"].FindStringSubmatch(line); len(match) > 1 {
			if fields := strings.Fields(match[1]); len(fields) > 0 {
				info.Status = append(info.Status, fields[0])
			}
		}
	}

	info.NameServers = removeDuplicates(info.NameServers)
	info.Status = removeDuplicates(info.Status)
	return info
}

// parseDate attempts to parse the date formats found in whois and RDAP data.
func parseDate(dateStr string) time.Time {
	dateStr = strings.TrimSpace(dateStr)

	formats := []string{
		time.RFC3339,                // RDAP and most gTLD whois
		"2006-01-02T15:04:05Z",      // RFC3339 UTC
		"2006-01-02T15:04:05-0700",  // offset without colon
		"2006-01-02 15:04:05 MST",   // with zone abbreviation
		"2006-01-02 15:04:05",       // MySQL datetime
		"2006-01-02",                // date only
		"02-Jan-2006",               // some registrars
		"2-Jan-2006",                // some registrars
		"January 02 2006",           // some registrars
		"2006/01/02",                // some registrars
		"2006.01.02",                // ccTLDs
		"02.01.2006",                // ccTLDs
	}

	for _, format := range formats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return date.UTC()
		}
	}
	return time.Time{}
}

// removeDuplicates removes duplicate strings from slice, keeping order.
func removeDuplicates(slice []string) []string {
	seen := make(map[string]bool)
	result := []string{}

	for _, item := range slice {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
