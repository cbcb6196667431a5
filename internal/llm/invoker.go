package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"swotlens/internal/logger"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultAttemptTimeout = 2 * time.Minute
)

// Invoker sends requests through a Generator, retrying transient failures
// with exponential backoff and walking the model policy when a model is
// missing. The model that answers is remembered for later calls.
type Invoker struct {
	gen            Generator
	models         []string
	current        atomic.Int32
	maxAttempts    int
	baseDelay      time.Duration
	attemptTimeout time.Duration
	limiter        *rate.Limiter
	sleep          func(time.Duration)
	log            *slog.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithMaxAttempts sets the total number of calls made for one request.
func WithMaxAttempts(n int) Option {
	return func(inv *Invoker) {
		if n > 0 {
			inv.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the first backoff delay. Later delays double.
func WithBaseDelay(d time.Duration) Option {
	return func(inv *Invoker) { inv.baseDelay = d }
}

// WithAttemptTimeout bounds each individual call. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) Option {
	return func(inv *Invoker) { inv.attemptTimeout = d }
}

// WithRequestsPerMinute limits the call rate. Zero or less means unlimited.
func WithRequestsPerMinute(rpm int) Option {
	return func(inv *Invoker) {
		if rpm <= 0 {
			inv.limiter = nil
			return
		}
		inv.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}
}

// WithSleep replaces the blocking sleep used between retries.
func WithSleep(sleep func(time.Duration)) Option {
	return func(inv *Invoker) { inv.sleep = sleep }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(inv *Invoker) { inv.log = l }
}

// NewInvoker creates an invoker for gen. An empty policy uses DefaultPolicy.
func NewInvoker(gen Generator, policy ModelPolicy, opts ...Option) *Invoker {
	models := policy.Models()
	if len(models) == 0 {
		models = DefaultPolicy().Models()
	}
	inv := &Invoker{
		gen:            gen,
		models:         models,
		maxAttempts:    DefaultMaxAttempts,
		baseDelay:      DefaultBaseDelay,
		attemptTimeout: DefaultAttemptTimeout,
		sleep:          time.Sleep,
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.log == nil {
		inv.log = logger.Get()
	}
	return inv
}

// Model returns the model the next call will use.
func (inv *Invoker) Model() string {
	return inv.models[inv.current.Load()]
}

// Invoke sends req and returns the model's text. Transient failures are
// retried up to the attempt limit; auth and quota failures return a
// *FatalError after a single call; a rejected request fails at once. If ctx
// ends, its error is returned unchanged.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (Response, error) {
	calls := 0
	var lastErr error
	var lastModel string

	for attempt := 0; attempt < inv.maxAttempts; {
		if err := ctx.Err(); err != nil {
			return Response{Attempts: calls}, err
		}

		idx := inv.current.Load()
		model := inv.models[idx]
		if req.Model != "" {
			model = req.Model
		}
		lastModel = model

		if err := inv.wait(ctx); err != nil {
			return Response{Attempts: calls}, err
		}

		text, err := inv.call(ctx, model, req)
		calls++
		if err == nil {
			return Response{Text: text, Model: model, Attempts: calls}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{Attempts: calls}, ctxErr
		}

		kind := Classify(err)
		switch kind {
		case KindModelMissing:
			if req.Model == "" && inv.advance(idx) {
				inv.log.Warn("Model not found, trying next candidate", "model", model, "next", inv.Model())
				continue
			}
			return Response{Attempts: calls}, newFatal(kind, model, err)
		case KindAuth, KindQuota:
			return Response{Attempts: calls}, newFatal(kind, model, err)
		case KindRejected:
			return Response{Attempts: calls}, fmt.Errorf("%w: %w", ErrRequestRejected, err)
		}

		lastErr = err
		if attempt+1 >= inv.maxAttempts {
			break
		}
		delay := inv.baseDelay * time.Duration(1<<uint(attempt))
		inv.log.Warn("Model call failed, retrying",
			"model", model,
			"attempt", attempt+1,
			"max_attempts", inv.maxAttempts,
			"delay", delay,
			"error", err.Error())
		inv.sleep(delay)
		attempt++
	}

	return Response{Attempts: calls}, &UnavailableError{Attempts: calls, Model: lastModel, Cause: lastErr}
}

func (inv *Invoker) call(ctx context.Context, model string, req Request) (string, error) {
	if inv.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.attemptTimeout)
		defer cancel()
	}
	req.Model = model
	text, err := inv.gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (inv *Invoker) wait(ctx context.Context) error {
	if inv.limiter == nil {
		return nil
	}
	if err := inv.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// The limiter refuses waits that would outlive the deadline.
		return fmt.Errorf("%w: %w", ErrDeadlineTooClose, context.DeadlineExceeded)
	}
	return nil
}

// advance moves past the model at idx. It reports whether a later model is
// now current, including when another caller already advanced.
func (inv *Invoker) advance(idx int32) bool {
	if int(idx)+1 >= len(inv.models) {
		return false
	}
	inv.current.CompareAndSwap(idx, idx+1)
	return true
}

func newFatal(kind Kind, model string, err error) *FatalError {
	fatal := &FatalError{Kind: kind, Model: model, Message: err.Error(), Err: err}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		fatal.Status = statusErr.Code
		if statusErr.Message != "" {
			fatal.Message = statusErr.Message
		}
	}
	return fatal
}
