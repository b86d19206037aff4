package domain

import (
	"context"
	"iter"
	"regexp"
	"strings"
)

const (
	DefaultExpiredLimit = 10
	MaxExpiredLimit     = 50
)

// DefaultExpiredTLDs are searched when the caller names none.
var DefaultExpiredTLDs = []string{"com", "net", "org", "io"}

var candidateSuffixes = []string{"", "hq", "hub", "app", "online", "site", "pro", "labs", "now", "io"}

var keywordPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,48}[a-z0-9])?$`)

type ExpiredSearchResult struct {
	Keyword    string         `json:"keyword"`
	TLDs       []string       `json:"tlds"`
	Limit      int            `json:"limit"`
	Candidates []Availability `json:"candidates"`
	Checked    int            `json:"checked"`
	Errors     int            `json:"errors"`
}

// Candidates yields keyword+suffix+"."+tld for every suffix and TLD,
// without repeats. It is finite and computes names on demand.
func Candidates(keyword string, tlds []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for _, suffix := range candidateSuffixes {
			for _, tld := range tlds {
				name := keyword + suffix + "." + tld
				if _, ok := seen[name]; ok {
					continue
				}
				seen[name] = struct{}{}
				if !yield(name) {
					return
				}
			}
		}
	}
}

// ValidKeyword reports whether keyword, trimmed and lowercased, can seed
// candidate names.
func ValidKeyword(keyword string) bool {
	return keywordPattern.MatchString(strings.ToLower(strings.TrimSpace(keyword)))
}

// ValidTLD reports whether tld, with an optional leading dot, is a usable
// top-level label.
func ValidTLD(tld string) bool {
	tld = normalizeTLD(tld)
	return validLabel(tld) && !isNumeric(tld)
}

func normalizeTLD(tld string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tld)), ".")
}

// SearchExpired walks the candidate names for keyword and returns up to
// limit that are currently unregistered. Per-candidate failures are counted
// and skipped.
func (c *Client) SearchExpired(ctx context.Context, keyword string, tlds []string, limit int) (*ExpiredSearchResult, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if !ValidKeyword(keyword) {
		return nil, validationError("search", keyword, "keyword must be 1-50 characters of letters, digits and inner hyphens")
	}

	switch {
	case limit == 0:
		limit = DefaultExpiredLimit
	case limit < 0 || limit > MaxExpiredLimit:
		return nil, validationError("search", keyword, "limit must be between 1 and %d", MaxExpiredLimit)
	}

	cleaned, err := cleanTLDs(keyword, tlds)
	if err != nil {
		return nil, err
	}

	res := &ExpiredSearchResult{
		Keyword:    keyword,
		TLDs:       cleaned,
		Limit:      limit,
		Candidates: []Availability{},
	}
	for name := range Candidates(keyword, cleaned) {
		if len(res.Candidates) >= limit || ctx.Err() != nil {
			break
		}
		res.Checked++

		avail, err := c.availability(ctx, name)
		if err != nil {
			res.Errors++
			c.logger().Debug("candidate check failed", "domain", name, "kind", KindOf(err))
			continue
		}
		if avail.Available {
			res.Candidates = append(res.Candidates, *avail)
		}
	}
	return res, nil
}

func cleanTLDs(keyword string, tlds []string) ([]string, error) {
	if len(tlds) == 0 {
		return append([]string{}, DefaultExpiredTLDs...), nil
	}
	out := make([]string, 0, len(tlds))
	for _, tld := range tlds {
		if !ValidTLD(tld) {
			return nil, validationError("search", keyword, "invalid tld %q", tld)
		}
		out = append(out, normalizeTLD(tld))
	}
	return out, nil
}
