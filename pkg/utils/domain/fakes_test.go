package domain

import (
	"context"
	"errors"
	"sync"
)

type fakeSource struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, name string) (*RegistrationRecord, error)
}

func (f *fakeSource) Lookup(ctx context.Context, name string) (*RegistrationRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	return f.fn(ctx, name)
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func registered(registrar string) *fakeSource {
	return &fakeSource{fn: func(_ context.Context, name string) (*RegistrationRecord, error) {
		return &RegistrationRecord{Domain: name, Registrar: registrar, Source: "rdap"}, nil
	}}
}

func failing(kind ErrorKind, tier Tier) *fakeSource {
	return &fakeSource{fn: func(_ context.Context, name string) (*RegistrationRecord, error) {
		return nil, &LookupError{Kind: kind, Op: "fake", Domain: name, Tier: tier, Err: errors.New("fake failure")}
	}}
}

type fakeRunner struct {
	mu    sync.Mutex
	out   []byte
	err   error
	calls [][]string
	stdin [][]byte
}

func (r *fakeRunner) Run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.stdin = append(r.stdin, stdin)
	return r.out, r.err
}

type answer struct {
	values []string
	err    error
}

type fakeResolver struct {
	mu      sync.Mutex
	answers map[RecordType]answer
	asked   []RecordType
}

func (r *fakeResolver) Query(_ context.Context, name string, rtype RecordType) ([]string, error) {
	r.mu.Lock()
	r.asked = append(r.asked, rtype)
	r.mu.Unlock()
	a, ok := r.answers[rtype]
	if !ok {
		return []string{}, nil
	}
	return a.values, a.err
}
