// Package resolve turns the asynchronous aftermath of a user action into a
// deterministic Outcome by polling the capture buffer and the page's
// feedback region on one bounded loop.
package resolve

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/formprobe/internal/capture"
	"github.com/dgnsrekt/formprobe/internal/verdict"
)

// DefaultAlertSelector is the site's feedback banner text.
const DefaultAlertSelector = "div.absolute.flex.items-center .flex-1 > p"

// TextReader is the slice of the page the resolver reads.
type TextReader interface {
	VisibleText(ctx context.Context, sel string) (string, bool, error)
	FindText(ctx context.Context, scope, pattern string) (string, bool, error)
}

// Options configure polling. Zero values fall back to 120ms and 1200ms.
type Options struct {
	PollInterval  time.Duration
	Timeout       time.Duration
	AlertSelector string
}

// Outcome is what one submit attempt produced.
type Outcome struct {
	Requests []capture.Request `json:"requests"`
	Alert    *verdict.Alert    `json:"alert,omitempty"`
	Success  bool              `json:"success"`
}

// Verdict returns the alert's verdict, or None when no alert was seen.
func (o Outcome) Verdict() verdict.Verdict {
	if o.Alert == nil {
		return verdict.None
	}
	return o.Alert.Verdict
}

type Resolver struct {
	page       TextReader
	buf        *capture.Buffer
	classifier *verdict.Classifier
	opts       Options
}

func New(page TextReader, buf *capture.Buffer, classifier *verdict.Classifier, opts Options) *Resolver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 120 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 1200 * time.Millisecond
	}
	if opts.AlertSelector == "" {
		opts.AlertSelector = DefaultAlertSelector
	}
	if classifier == nil {
		classifier = verdict.MustDefault()
	}
	return &Resolver{page: page, buf: buf, classifier: classifier, opts: opts}
}

func (r *Resolver) Options() Options { return r.opts }

// ClearCaptures drops every buffered request.
func (r *Resolver) ClearCaptures() { r.buf.Clear() }

func (r *Resolver) timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return r.opts.Timeout
	}
	return d
}

// WaitForCapture returns the oldest captured request, consuming it, or
// ok=false when nothing arrived before timeout.
func (r *Resolver) WaitForCapture(ctx context.Context, timeout time.Duration) (capture.Request, bool) {
	var got capture.Request
	ok := r.poll(ctx, r.timeout(timeout), func() bool {
		var found bool
		got, found = r.buf.Drain()
		return found
	})
	return got, ok
}

// ReadAlert performs a single read of the feedback region. Read failures
// count as "no alert".
func (r *Resolver) ReadAlert(ctx context.Context) *verdict.Alert {
	text, visible, err := r.page.VisibleText(ctx, r.opts.AlertSelector)
	if err != nil {
		slog.Debug("resolve alert read failed", "selector", r.opts.AlertSelector, "error", err)
		return nil
	}
	if !visible {
		return nil
	}
	return r.classifier.Alert(text)
}

// WaitForVerdict polls the feedback region until visible text appears.
// The returned Alert has Verdict None when the deadline passes first.
func (r *Resolver) WaitForVerdict(ctx context.Context, timeout time.Duration) verdict.Alert {
	var alert *verdict.Alert
	r.poll(ctx, r.timeout(timeout), func() bool {
		alert = r.ReadAlert(ctx)
		return alert != nil
	})
	if alert == nil {
		return verdict.Alert{Verdict: verdict.None}
	}
	return *alert
}

// ResolveOutcome clears stale captures, runs action, then watches both the
// buffer and the feedback region until a success or error alert shows or
// the deadline passes. Every capture seen by then is drained into the
// Outcome in arrival order.
func (r *Resolver) ResolveOutcome(ctx context.Context, action func(context.Context) error, timeout time.Duration) (Outcome, error) {
	r.buf.Clear()
	if action != nil {
		if err := action(ctx); err != nil {
			return Outcome{Requests: r.buf.DrainAll()}, err
		}
	}

	var last *verdict.Alert
	r.poll(ctx, r.timeout(timeout), func() bool {
		if a := r.ReadAlert(ctx); a != nil {
			last = a
			return a.Verdict == verdict.Success || a.Verdict == verdict.Error
		}
		return false
	})

	out := Outcome{Requests: r.buf.DrainAll(), Alert: last}
	out.Success = last != nil && last.Verdict == verdict.Success
	slog.Debug("resolve outcome", "verdict", out.Verdict(), "requests", len(out.Requests))
	return out, nil
}

// WaitForText polls scope for visible text matching any of patterns and
// returns the first hit.
func (r *Resolver) WaitForText(ctx context.Context, scope string, patterns []string, timeout time.Duration) (string, bool) {
	var hit string
	ok := r.poll(ctx, r.timeout(timeout), func() bool {
		for _, p := range patterns {
			text, visible, err := r.page.FindText(ctx, scope, p)
			if err != nil {
				slog.Debug("resolve text read failed", "pattern", p, "error", err)
				continue
			}
			if visible {
				hit = text
				return true
			}
		}
		return false
	})
	return hit, ok
}

// poll calls check immediately and then every PollInterval until it
// reports true, the timeout elapses or ctx ends.
func (r *Resolver) poll(ctx context.Context, timeout time.Duration, check func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		if check() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return check()
		case <-ticker.C:
		}
	}
}
