package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vit0-9/domain_mcp/pkg/metrics"
	"github.com/vit0-9/domain_mcp/pkg/utils/domain"
)

// ErrUnknownTool is returned by Call for names outside the enumeration.
var ErrUnknownTool = errors.New("unknown tool")

// Service is the backend surface the dispatcher routes to.
// *domain.Client implements it.
type Service interface {
	Registration(ctx context.Context, name string) (*domain.RegistrationRecord, error)
	DNSLookup(ctx context.Context, name string) (*domain.DNSLookupResult, error)
	Availability(ctx context.Context, name string) (*domain.Availability, error)
	Certificate(ctx context.Context, name string) (*domain.CertificateInfo, error)
	SearchExpired(ctx context.Context, keyword string, tlds []string, limit int) (*domain.ExpiredSearchResult, error)
	DomainAge(ctx context.Context, name string) (*domain.DomainAge, error)
	BulkCheck(ctx context.Context, names []string) (*domain.BulkResult, error)
	DNSRecords(ctx context.Context, name string, types []domain.RecordType) (*domain.DNSRecordSet, error)
}

// State is a call's lifecycle stage. A call only moves forward.
type State string

const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateDispatched State = "dispatched"
	StateCompleted  State = "completed"
)

// ToolError is the structured failure reported to callers.
type ToolError struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Tool    ToolName         `json:"tool"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// Outcome is the result of one call. Exactly one of Payload and Err is set.
type Outcome struct {
	CallID   string
	Tool     ToolName
	Payload  any
	Err      *ToolError
	State    State
	FailedAt State // stage that failed, empty on success
	History  []State
	Duration time.Duration
}

func (o *Outcome) advance(s State) {
	o.State = s
	o.History = append(o.History, s)
}

// Dispatcher validates arguments and invokes the matching backend.
type Dispatcher struct {
	svc    Service
	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

func NewDispatcher(svc Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:    svc,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/vit0-9/domain_mcp/pkg/tools"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call runs one tool invocation. The returned error is non-nil only for an
// unknown tool name; every other failure is carried in the Outcome.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (*Outcome, error) {
	tool, ok := ParseToolName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	out := &Outcome{CallID: uuid.NewString(), Tool: tool}
	out.advance(StateReceived)
	log := d.logger.With("tool", tool, "call_id", out.CallID)

	ctx, span := d.tracer.Start(ctx, "tool."+string(tool), trace.WithAttributes(
		attribute.String("tool.name", string(tool)),
		attribute.String("tool.call_id", out.CallID),
	))
	defer span.End()

	invoke, err := d.bind(tool, args)
	if err != nil {
		d.fail(out, StateValidated, err)
	} else {
		out.advance(StateValidated)
		out.advance(StateDispatched)
		payload, err := invoke(ctx)
		if err != nil {
			d.fail(out, StateDispatched, err)
		} else {
			out.Payload = payload
			out.advance(StateCompleted)
		}
	}
	out.Duration = time.Since(start)

	kind := metrics.KindOK
	span.SetAttributes(attribute.String("tool.state", string(out.State)))
	if out.Err != nil {
		kind = string(out.Err.Kind)
		span.SetAttributes(attribute.String("error.kind", kind))
		span.SetStatus(codes.Error, out.Err.Message)
		log.Warn("tool call failed", "kind", kind, "failed_at", out.FailedAt, "duration", out.Duration)
	} else {
		span.SetStatus(codes.Ok, "")
		log.Info("tool call completed", "duration", out.Duration)
	}
	metrics.RecordCall(string(tool), kind, out.Duration)
	return out, nil
}

func (d *Dispatcher) fail(out *Outcome, at State, err error) {
	out.FailedAt = at
	out.Err = &ToolError{Kind: domain.KindOf(err), Message: err.Error(), Tool: out.Tool}
}

type invocation func(ctx context.Context) (any, error)

// bind validates args for tool and returns the backend invocation.
func (d *Dispatcher) bind(tool ToolName, args map[string]any) (invocation, error) {
	switch tool {
	case WhoisLookup:
		a, err := decodeDomainArgs(tool, args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return d.svc.Registration(ctx, a.Domain) }, nil
	case DNSLookup:
		a, err := decodeDomainArgs(tool, args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return d.svc.DNSLookup(ctx, a.Domain) }, nil
	case CheckDomainAvailability:
		a, err := decodeDomainArgs(tool, args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return d.svc.Availability(ctx, a.Domain) }, nil
	case SSLCertificateInfo:
		a, err := decodeDomainArgs(tool, args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return d.svc.Certificate(ctx, a.Domain) }, nil
	case SearchExpiredDomains:
		a, err := decodeArgs[SearchArgs](tool, args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) {
			return d.svc.SearchExpired(ctx, a.Keyword, a.TLDs, a.Limit)
		}, nil
	case DomainAgeCheck:
		a, err := decodeDomainArgs(tool, args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return d.svc.DomainAge(ctx, a.Domain) }, nil
	case BulkDomainCheck:
		a, err := decodeArgs[BulkArgs](tool, args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return d.svc.BulkCheck(ctx, a.Domains) }, nil
	case GetDNSRecords:
		a, err := decodeArgs[RecordArgs](tool, args)
		if err != nil {
			return nil, err
		}
		if _, err := domain.Normalize(string(tool), a.Domain); err != nil {
			return nil, err
		}
		types := make([]domain.RecordType, 0, len(a.RecordTypes))
		for _, t := range a.RecordTypes {
			types = append(types, domain.RecordType(t))
		}
		return func(ctx context.Context) (any, error) { return d.svc.DNSRecords(ctx, a.Domain, types) }, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
}

// decodeDomainArgs also checks the domain syntax so malformed names never
// reach a backend.
func decodeDomainArgs(tool ToolName, args map[string]any) (DomainArgs, error) {
	a, err := decodeArgs[DomainArgs](tool, args)
	if err != nil {
		return a, err
	}
	if _, err := domain.Normalize(string(tool), a.Domain); err != nil {
		return a, err
	}
	return a, nil
}
