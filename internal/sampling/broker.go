// Package sampling implements the reverse-invocation pattern: a tool
// provider calling back into an externally hosted text capability, with a
// hard timeout and a graceful degrade-to-original fallback.
package sampling

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTimeout bounds how long a rephrase call may take.
const DefaultTimeout = 5 * time.Second

// DefaultMaxTextLen bounds the size of one text unit sent to the capability.
const DefaultMaxTextLen = 2048

// ImproveFunc is the externally supplied capability. It receives one bounded
// text unit and returns an improved version.
type ImproveFunc func(ctx context.Context, text string) (string, error)

// Result is the broker's answer. When Degraded is set, Text is the original
// input unchanged; callers decide whether to retry.
type Result struct {
	Text     string
	Degraded bool
}

// Options configures a Broker.
type Options struct {
	// Timeout bounds each call. The caller never blocks past it.
	Timeout time.Duration
	// MaxTextLen bounds the accepted text unit; longer inputs degrade
	// without calling the capability.
	MaxTextLen int
}

// Broker wraps the capability with the timeout and fallback contract.
type Broker struct {
	improve    ImproveFunc
	timeout    time.Duration
	maxTextLen int
}

// New creates a Broker around the supplied capability.
func New(improve ImproveFunc, opts Options) *Broker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxTextLen <= 0 {
		opts.MaxTextLen = DefaultMaxTextLen
	}
	return &Broker{improve: improve, timeout: opts.Timeout, maxTextLen: opts.MaxTextLen}
}

// Rephrase sends one text unit to the capability. On success it returns the
// improved text. On timeout, capability error, or an oversized input it
// returns the original text unchanged, marked degraded.
func (b *Broker) Rephrase(ctx context.Context, text string) Result {
	if b.improve == nil {
		return Result{Text: text, Degraded: true}
	}
	if len(text) > b.maxTextLen {
		slog.Warn("sampling: text unit over limit, degrading", "len", len(text), "max", b.maxTextLen)
		return Result{Text: text, Degraded: true}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		improved, err := b.improve(ctx, text)
		done <- answer{text: improved, err: err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			slog.Warn("sampling: capability failed, degrading", "err", a.err)
			return Result{Text: text, Degraded: true}
		}
		return Result{Text: a.text}
	case <-ctx.Done():
		slog.Warn("sampling: capability timed out, degrading", "timeout", b.timeout)
		return Result{Text: text, Degraded: true}
	}
}
