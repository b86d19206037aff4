package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"syscall"
)

// ErrorKind classifies every failure a lookup can produce.
type ErrorKind string

const (
	KindValidation  ErrorKind = "ValidationError"
	KindNotFound    ErrorKind = "NotFound"
	KindTransport   ErrorKind = "TransportError"
	KindTimeout     ErrorKind = "Timeout"
	KindUnsupported ErrorKind = "UnsupportedOperation"
	KindParse       ErrorKind = "ParseError"
)

// Tier records which registration path produced a result.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
)

var (
	ErrConnectionRefused    = errors.New("connection refused")
	ErrNoCertificateService = errors.New("no certificate service")
	ErrUnsupportedTLD       = errors.New("unsupported tld")
)

// LookupError is the single error type returned by every backend.
type LookupError struct {
	Kind   ErrorKind
	Op     string // rdap, whois, dns, tls, ...
	Domain string
	Source string // endpoint URL or command line
	Tier   Tier
	Err    error
	Prior  *LookupError // primary failure when the secondary also failed
}

func (e *LookupError) Error() string {
	msg := e.Op + " lookup failed"
	if e.Kind == KindValidation {
		msg = "validation failed"
	}
	if e.Domain != "" {
		msg += " for " + e.Domain
	}
	if e.Source != "" {
		msg += " via " + e.Source
	}
	msg += fmt.Sprintf(" (%s)", e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Prior != nil {
		msg += "; after " + e.Prior.Error()
	}
	return msg
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind carried by err, or TransportError for foreign errors.
func KindOf(err error) ErrorKind {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindTransport
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var le *LookupError
	return errors.As(err, &le) && le.Kind == kind
}

func validationError(op, domain string, format string, args ...any) *LookupError {
	return &LookupError{
		Kind:   KindValidation,
		Op:     op,
		Domain: domain,
		Err:    fmt.Errorf(format, args...),
	}
}

// classify maps an I/O error onto the taxonomy. Errors that are already
// LookupErrors keep their kind.
func classify(err error) ErrorKind {
	var le *LookupError
	switch {
	case errors.As(err, &le):
		return le.Kind
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, exec.ErrNotFound):
		return KindUnsupported
	case errors.Is(err, ErrUnsupportedTLD):
		return KindUnsupported
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
