package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antoniostano/sauti/internal/observability"
	"github.com/antoniostano/sauti/internal/reliability"
	"github.com/rs/zerolog"
)

var (
	// ErrNotReady is returned when a capability has no backend and no canned fallback.
	ErrNotReady = errors.New("capability not ready")
	// ErrAllBackendsFailed wraps the per-backend errors of a failed invocation.
	ErrAllBackendsFailed = errors.New("all backends failed")
)

// BackendCanned is reported as the serving backend when the canned fallback answers.
const BackendCanned = "canned"

// Candidate is a backend constructor. Candidates are probed once when the
// gate is built; a failing or panicking constructor only removes that candidate.
type Candidate[In, Out any] struct {
	Name  string
	Build func() (func(context.Context, In) (Out, error), error)
}

type backend[In, Out any] struct {
	name string
	call func(context.Context, In) (Out, error)
}

// GateConfig carries the parts of a gate shared by every capability.
type GateConfig[In, Out any] struct {
	Capability Capability
	// Timeout bounds each backend call. Zero disables the per-call bound.
	Timeout time.Duration
	// Canned answers when no backend is resolved or every backend failed.
	// Nil means the capability cannot degrade.
	Canned  func(In) Out
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Gate tries its resolved backends in fixed priority order. A failed call
// moves to the next backend; the same backend is never retried.
type Gate[In, Out any] struct {
	capability Capability
	timeout    time.Duration
	canned     func(In) Out
	backends   []backend[In, Out]
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

func NewGate[In, Out any](cfg GateConfig[In, Out], candidates ...Candidate[In, Out]) *Gate[In, Out] {
	g := &Gate[In, Out]{
		capability: cfg.Capability,
		timeout:    cfg.Timeout,
		canned:     cfg.Canned,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("capability", string(cfg.Capability)).Logger(),
	}
	for _, c := range candidates {
		call, err := probe(c)
		if err != nil {
			g.logger.Info().Str("backend", c.Name).Err(err).Msg("backend unavailable")
			continue
		}
		if call == nil {
			continue
		}
		g.backends = append(g.backends, backend[In, Out]{name: c.Name, call: call})
		g.logger.Info().Str("backend", c.Name).Msg("backend resolved")
	}
	return g
}

func probe[In, Out any](c Candidate[In, Out]) (call func(context.Context, In) (Out, error), err error) {
	if c.Build == nil {
		return nil, fmt.Errorf("no constructor")
	}
	defer func() {
		if r := recover(); r != nil {
			call, err = nil, fmt.Errorf("constructor panic: %v", r)
		}
	}()
	return c.Build()
}

// Ready reports whether at least one real backend resolved.
func (g *Gate[In, Out]) Ready() bool {
	return g != nil && len(g.backends) > 0
}

// Backends lists resolved backends in priority order.
func (g *Gate[In, Out]) Backends() []string {
	if g == nil {
		return nil
	}
	names := make([]string, 0, len(g.backends))
	for _, b := range g.backends {
		names = append(names, b.name)
	}
	return names
}

func (g *Gate[In, Out]) Capability() Capability {
	return g.capability
}

// Invoke returns the first successful backend result and the name of the
// backend that produced it. Cancellation of ctx stops the fall-through.
func (g *Gate[In, Out]) Invoke(ctx context.Context, in In) (Out, string, error) {
	var zero Out
	if g == nil {
		return zero, "", ErrNotReady
	}

	var errs []error
	for _, b := range g.backends {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		out, err := g.call(ctx, b, in)
		if err == nil {
			return out, b.name, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, "", ctxErr
		}
		g.metrics.ObserveBackendFailure(string(g.capability), b.name)
		g.logger.Warn().
			Str("backend", b.name).
			Str("kind", reliability.FailureKind(err)).
			Err(err).
			Msg("backend failed, falling through")
		errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
	}

	if g.canned != nil {
		g.metrics.ObserveCanned(string(g.capability))
		return g.canned(in), BackendCanned, nil
	}
	if len(errs) == 0 {
		return zero, "", ErrNotReady
	}
	return zero, "", fmt.Errorf("%s %w: %w", g.capability, ErrAllBackendsFailed, errors.Join(errs...))
}

func (g *Gate[In, Out]) call(ctx context.Context, b backend[In, Out], in In) (out Out, err error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return b.call(ctx, in)
}
