// Package gateway turns OCR text into structured expense fields, compliance
// figures and free-form text through an interchangeable LLM backend, rotating
// across a pool of API credentials when one is throttled or rejected.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/jsonfix"
	"github.com/sells-group/payai/internal/model"
	"github.com/sells-group/payai/internal/resilience"
)

var (
	// ErrExtractionUnavailable matches every error returned when no
	// credential could serve a call.
	ErrExtractionUnavailable = eris.New("gateway: extraction unavailable")
	// ErrAllCredentialsExhausted is returned (wrapped) when every
	// credential was throttled or rejected.
	ErrAllCredentialsExhausted = resilience.ErrAllCredentialsExhausted
	// ErrNoCredentialsConfigured is returned (wrapped) when the pool is empty.
	ErrNoCredentialsConfigured = resilience.ErrNoCredentialsConfigured
)

// UnavailableError reports a failed gateway call. It matches
// ErrExtractionUnavailable and unwraps to the underlying cause.
type UnavailableError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("gateway: %s unavailable after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrExtractionUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrExtractionUnavailable
}

const textTemperature = 0.9

// Extraction is the result of ExtractFields.
type Extraction struct {
	Fields model.ExtractedFields
	Raw    string
}

// Gateway is safe for concurrent use.
type Gateway struct {
	backend     Backend
	pool        *resilience.RotatingPool
	temperature float64
	loc         *time.Location
	now         func() time.Time
	log         *zap.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTemperature sets the sampling temperature for structured extraction.
func WithTemperature(t float64) Option {
	return func(g *Gateway) { g.temperature = t }
}

// WithLocation sets the zone used for the default expense date.
func WithLocation(loc *time.Location) Option {
	return func(g *Gateway) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New creates a Gateway that owns pool.
func New(backend Backend, pool *resilience.RotatingPool, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		pool:    pool,
		loc:     time.UTC,
		now:     time.Now,
		log:     zap.L().With(zap.String("component", "gateway")),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// ExtractFields asks the backend for bill fields in text. The result is
// always normalized; an error means no credential could serve the call.
func (g *Gateway) ExtractFields(ctx context.Context, text string) (*Extraction, error) {
	raw, err := g.complete(ctx, Request{
		Operation:   "extract_fields",
		System:      billSystemPrompt,
		Prompt:      billPrompt(text),
		JSON:        true,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, err
	}

	obj, perr := jsonfix.DecodeObject([]byte(raw))
	if perr != nil {
		g.log.Warn("unparseable extraction response, using defaults", zap.Error(perr))
		obj = map[string]any{}
	}

	return &Extraction{
		Fields: NormalizeFields(obj, g.now().In(g.loc)),
		Raw:    raw,
	}, nil
}

// GenerateText returns free-form text for prompt, or fallback when the
// backend cannot produce any. It never fails.
func (g *Gateway) GenerateText(ctx context.Context, prompt, fallback string) string {
	out, err := g.complete(ctx, Request{
		Operation:   "generate_text",
		Prompt:      prompt,
		Temperature: textTemperature,
	})
	if err != nil {
		return fallback
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return fallback
	}
	return out
}

// ExtractCompliance parses a participant's status message into reconciled
// compliance figures. It returns the raw completion alongside.
func (g *Gateway) ExtractCompliance(ctx context.Context, message string) (*model.ComplianceFigures, string, error) {
	raw, err := g.complete(ctx, Request{
		Operation:   "extract_compliance",
		System:      complianceSystemPrompt,
		Prompt:      compliancePrompt(message),
		JSON:        true,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, "", err
	}

	figures, err := decodeFigures([]byte(raw))
	if err != nil {
		return nil, raw, err
	}
	reconciled := figures.Reconcile()
	return &reconciled, raw, nil
}

func (g *Gateway) complete(ctx context.Context, req Request) (string, error) {
	out, attempts, err := resilience.Rotate(ctx, g.pool, func(ctx context.Context, cred string) (string, error) {
		return g.backend.Complete(ctx, cred, req)
	})
	if err != nil {
		g.log.Error("completion failed",
			zap.String("operation", req.Operation),
			zap.Int("attempts", attempts),
			zap.Int("credentials", g.pool.Len()),
			zap.Error(err),
		)
		return "", &UnavailableError{Operation: req.Operation, Attempts: attempts, Err: err}
	}
	return out, nil
}
