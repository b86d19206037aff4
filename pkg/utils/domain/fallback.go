package domain

import (
	"context"
	"errors"
)

// RegistrationSource is one path to registration data.
type RegistrationSource interface {
	Lookup(ctx context.Context, name string) (*RegistrationRecord, error)
}

// ShouldFallback reports whether a primary failure of this kind may be
// retried through the legacy path. Definitive answers (NotFound) and bad
// payloads are never retried.
func ShouldFallback(kind ErrorKind) bool {
	switch kind {
	case KindTransport, KindTimeout, KindUnsupported:
		return true
	default:
		return false
	}
}

// LookupRegistration asks primary first and, only when the failure is an
// unreachable endpoint, a timeout or an unsupported TLD, asks secondary
// exactly once. When both fail the returned error carries the secondary's
// kind with the primary failure attached as Prior.
func LookupRegistration(ctx context.Context, primary, secondary RegistrationSource, name string) (*RegistrationRecord, error) {
	rec, err := primary.Lookup(ctx, name)
	if err == nil {
		rec.Tier = TierPrimary
		return rec, nil
	}

	primaryErr := asLookupError(err, "rdap", name, TierPrimary)
	if secondary == nil || !ShouldFallback(primaryErr.Kind) {
		return nil, primaryErr
	}

	rec, err = secondary.Lookup(ctx, name)
	if err == nil {
		rec.Tier = TierSecondary
		return rec, nil
	}

	secondaryErr := asLookupError(err, "whois", name, TierSecondary)
	combined := *secondaryErr
	combined.Prior = primaryErr
	return nil, &combined
}

func asLookupError(err error, op, name string, tier Tier) *LookupError {
	var le *LookupError
	if errors.As(err, &le) {
		if le.Tier == "" {
			le.Tier = tier
		}
		return le
	}
	return &LookupError{Kind: classify(err), Op: op, Domain: name, Tier: tier, Err: err}
}
