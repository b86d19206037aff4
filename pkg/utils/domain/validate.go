package domain

import (
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

const (
	maxDomainLength = 253
	maxLabelLength  = 63
)

// Normalize cleans up user input and checks it against the hostname label
// rules. The returned name is lowercase ASCII (IDNs become A-labels).
func Normalize(op, raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimSuffix(name, "/")
	name = strings.TrimSuffix(name, ".")

	if name == "" {
		return "", validationError(op, raw, "domain cannot be empty")
	}

	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", validationError(op, raw, "invalid internationalized domain: %v", err)
	}
	name = ascii

	if len(name) > maxDomainLength {
		return "", validationError(op, raw, "domain exceeds %d characters", maxDomainLength)
	}

	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return "", validationError(op, raw, "invalid domain format: %s", name)
	}
	for _, label := range labels {
		if !validLabel(label) {
			return "", validationError(op, raw, "invalid label %q", label)
		}
	}
	if isNumeric(labels[len(labels)-1]) {
		return "", validationError(op, raw, "top-level domain cannot be numeric")
	}
	return name, nil
}

// Registrable reduces a normalized name to its registrable part
// (www.example.co.uk -> example.co.uk). Names that are themselves public
// suffixes are returned unchanged.
func Registrable(name string) string {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return etld1
}

// TLD returns the rightmost label.
func TLD(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > maxLabelLength {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
