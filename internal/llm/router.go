package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Router sends completions to the primary backend while its budget lasts
// and to the secondary otherwise. Either backend may be nil.
type Router struct {
	primary   Completer
	secondary Completer
	limiter   *Limiter
	stats     *Stats
	log       *slog.Logger
}

func NewRouter(primary, secondary Completer, limiter *Limiter, stats *Stats, log *slog.Logger) *Router {
	if limiter == nil {
		limiter = NewLimiter(8, 0)
	}
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{primary: primary, secondary: secondary, limiter: limiter, stats: stats, log: log}
}

func (r *Router) Name() string {
	switch {
	case r.primary != nil && r.secondary != nil:
		return r.primary.Name() + "+" + r.secondary.Name()
	case r.primary != nil:
		return r.primary.Name()
	case r.secondary != nil:
		return r.secondary.Name()
	}
	return "none"
}

// Available reports whether any backend is configured.
func (r *Router) Available() bool {
	return r.primary != nil || r.secondary != nil
}

func (r *Router) Complete(ctx context.Context, prompt string) (string, error) {
	if !r.Available() {
		return "", ErrNoBackend
	}
	if r.primary == nil {
		return r.call(ctx, r.secondary, prompt)
	}

	ticket, ok := r.limiter.TryAcquire()
	if !ok {
		if r.secondary == nil {
			return "", ErrBudgetExhausted
		}
		r.log.Info("primary budget exhausted, using secondary", "primary", r.primary.Name(), "secondary", r.secondary.Name())
		r.stats.Fallback()
		return r.call(ctx, r.secondary, prompt)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		r.limiter.Refund(ticket)
		return "", fmt.Errorf("primary pacing: %w", err)
	}

	out, err := r.call(ctx, r.primary, prompt)
	if err == nil {
		return out, nil
	}
	if IsQuotaError(err) {
		// A rejected call did not consume the backend's quota on our side.
		r.limiter.Refund(ticket)
		r.stats.Refund()
	}
	if r.secondary == nil || errors.Is(err, context.Canceled) {
		return "", err
	}
	r.log.Warn("primary backend failed, using secondary", "primary", r.primary.Name(), "error", err)
	r.stats.Fallback()
	return r.call(ctx, r.secondary, prompt)
}

func (r *Router) call(ctx context.Context, c Completer, prompt string) (string, error) {
	start := time.Now()
	out, err := c.Complete(ctx, prompt)
	r.stats.Record(c.Name(), time.Since(start), err)
	return out, err
}

// Snapshot reports call stats plus current primary budget use.
func (r *Router) Snapshot() StatsSnapshot {
	s := r.stats.Snapshot()
	s.BudgetUsed = r.limiter.Count()
	return s
}

// PrimaryCalls is the number of budget slots used in the trailing minute.
func (r *Router) PrimaryCalls() int {
	return r.limiter.Count()
}

// Instrument wraps a vision backend so its calls land in the same stats.
func Instrument(v VisionCompleter, stats *Stats) VisionCompleter {
	if v == nil || stats == nil {
		return v
	}
	return &instrumented{VisionCompleter: v, stats: stats}
}

type instrumented struct {
	VisionCompleter
	stats *Stats
}

func (i *instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := i.VisionCompleter.Complete(ctx, prompt)
	i.stats.Record(i.Name(), time.Since(start), err)
	return out, err
}

func (i *instrumented) CompleteImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	start := time.Now()
	out, err := i.VisionCompleter.CompleteImage(ctx, prompt, image, mimeType)
	i.stats.Record(i.Name()+"-vision", time.Since(start), err)
	return out, err
}
