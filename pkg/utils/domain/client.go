package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultMaxBulk         = 100
	DefaultBulkConcurrency = 8
)

// FallbackObserver is told how each registration fallback ended:
// "recovered" when the legacy path answered, "failed" when it did not.
type FallbackObserver func(outcome string)

// Client is the set of lookup backends behind the tool surface. Every
// method validates its input before any I/O.
type Client struct {
	Primary   RegistrationSource
	Secondary RegistrationSource
	DNS       *DNSClient
	Certs     *CertInspector

	MaxBulk         int
	BulkConcurrency int

	Logger     *slog.Logger
	OnFallback FallbackObserver
	Now        func() time.Time
}

// Registration validates raw and looks it up with the RDAP to whois
// fallback.
func (c *Client) Registration(ctx context.Context, raw string) (*RegistrationRecord, error) {
	name, err := Normalize("whois", raw)
	if err != nil {
		return nil, err
	}
	return c.registration(ctx, name)
}

func (c *Client) registration(ctx context.Context, name string) (*RegistrationRecord, error) {
	rec, err := LookupRegistration(ctx, c.Primary, c.Secondary, name)

	var le *LookupError
	switch {
	case err == nil && rec.Tier == TierSecondary:
		c.logger().Info("registration served by legacy whois", "domain", name, "tier", rec.Tier)
		c.observeFallback("recovered")
	case errors.As(err, &le) && le.Prior != nil:
		c.logger().Warn("registration lookup failed on both paths", "domain", name, "kind", le.Kind, "primary_kind", le.Prior.Kind)
		c.observeFallback("failed")
	}
	return rec, err
}

// DNSLookup returns every record type for raw.
func (c *Client) DNSLookup(ctx context.Context, raw string) (*DNSLookupResult, error) {
	name, err := Normalize("dns", raw)
	if err != nil {
		return nil, err
	}
	return c.DNS.Lookup(ctx, name)
}

// DNSRecords returns the requested record types for raw. Type names are
// case-insensitive.
func (c *Client) DNSRecords(ctx context.Context, raw string, types []RecordType) (*DNSRecordSet, error) {
	name, err := Normalize("dns", raw)
	if err != nil {
		return nil, err
	}
	parsed := make([]RecordType, 0, len(types))
	for _, t := range types {
		rtype, err := ParseRecordType(string(t))
		if err != nil {
			return nil, validationError("dns", name, "%v", err)
		}
		parsed = append(parsed, rtype)
	}
	return c.DNS.Records(ctx, name, parsed)
}

// Certificate inspects the certificate served for raw.
func (c *Client) Certificate(ctx context.Context, raw string) (*CertificateInfo, error) {
	name, err := Normalize("tls", raw)
	if err != nil {
		return nil, err
	}
	return c.Certs.Inspect(ctx, name)
}

func (c *Client) observeFallback(outcome string) {
	if c.OnFallback != nil {
		c.OnFallback(outcome)
	}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
