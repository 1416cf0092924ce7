package cdpcontrol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Keys accepted by PressKey.
const (
	KeyTab   = kb.Tab
	KeyEnter = kb.Enter
)

// Options bound every page action.
type Options struct {
	EvalTimeout   time.Duration
	NavTimeout    time.Duration
	NavAttempts   int
	NavBackoff    time.Duration
	ActionTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.EvalTimeout <= 0 {
		o.EvalTimeout = 5 * time.Second
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 45 * time.Second
	}
	if o.NavAttempts < 1 {
		o.NavAttempts = 1
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 10 * time.Second
	}
	return o
}

// Box is an element's bounding box in page coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle point of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Distance is the euclidean distance between the two box centres.
func (b Box) Distance(o Box) float64 {
	ax, ay := b.Center()
	bx, by := o.Center()
	return math.Hypot(ax-bx, ay-by)
}

// FieldInfo is one live read of a form control.
type FieldInfo struct {
	Value             string `json:"value"`
	NativeValid       bool   `json:"native_valid"`
	ValidationMessage string `json:"validation_message"`
	Disabled          bool   `json:"disabled"`
	Placeholder       string `json:"placeholder"`
	Visible           bool   `json:"visible"`
}

// RoleQuery finds elements by ARIA role and accessible name.
type RoleQuery struct {
	Role        string
	Name        string
	Exact       bool
	Scope       string
	VisibleOnly bool
}

type textResult struct {
	Visible bool   `json:"visible"`
	Text    string `json:"text"`
}

// Page drives one browser tab through chromedp. Every call is bounded by its
// own timeout and by the caller's context.
type Page struct {
	tab  context.Context
	opts Options
	seq  atomic.Int64
}

// NewPage wraps a chromedp tab context.
func NewPage(tab context.Context, opts Options) *Page {
	return &Page{tab: tab, opts: opts.withDefaults()}
}

// run executes actions on the tab under timeout, also honouring ctx.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.tab == nil || chromedp.FromContext(p.tab) == nil {
		return newError(CodeCDPUnavailable, "page has no browser context", nil)
	}
	runCtx, cancel := context.WithTimeout(p.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return newError(CodeEvalTimeout, "browser action timed out", err)
	}
	return err
}

// Eval runs a wrapped page script and decodes its envelope into out.
func (p *Page) Eval(ctx context.Context, js string, out any) error {
	var raw string
	err := p.run(ctx, p.opts.EvalTimeout, chromedp.Evaluate(js, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
	if err != nil {
		if CodeOf(err) != "" || errors.Is(err, context.Canceled) {
			return err
		}
		return newError(CodeEvalFailure, "evaluation failed", err)
	}
	return decodeEnvelope(raw, out)
}

// Navigate loads url once, waiting for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return newError(CodeValidation, "url is required", nil)
	}
	if err := p.run(ctx, p.opts.NavTimeout, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return newError(CodeNavigation, "navigate "+url, err)
	}
	return nil
}

// NavigateWithRetry retries transient navigation failures up to the
// configured attempts, sleeping the backoff between them.
func (p *Page) NavigateWithRetry(ctx context.Context, url string) error {
	var err error
	for attempt := 1; attempt <= p.opts.NavAttempts; attempt++ {
		err = p.Navigate(ctx, url)
		if err == nil {
			if attempt > 1 {
				slog.Info("cdpcontrol navigate recovered", "url", url, "attempt", attempt)
			}
			return nil
		}
		if !IsTransient(err) || attempt == p.opts.NavAttempts {
			break
		}
		slog.Warn("cdpcontrol navigate retry", "url", url, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.opts.NavBackoff):
		}
	}
	return err
}

// URL returns the tab's current location.
func (p *Page) URL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, p.opts.EvalTimeout, chromedp.Location(&u)); err != nil {
		return "", newError(CodeEvalFailure, "read location", err)
	}
	return u, nil
}

// Fill replaces the value of an input or textarea, firing input and change
// events the way typing would.
func (p *Page) Fill(ctx context.Context, sel, value string) error {
	return p.Eval(ctx, jsFill(sel, value), nil)
}

// Click performs a real mouse click once the element is visible.
func (p *Page) Click(ctx context.Context, sel string) error {
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
	if err != nil && CodeOf(err) == "" && !errors.Is(err, context.Canceled) {
		return newError(CodeEvalFailure, "click "+sel, err)
	}
	return err
}

// ClickJS dispatches element.click() without actionability checks.
func (p *Page) ClickJS(ctx context.Context, sel string) error {
	return p.Eval(ctx, jsClick(sel), nil)
}

// WaitVisible blocks until sel is visible or timeout elapses.
func (p *Page) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
	if CodeOf(err) == CodeEvalTimeout {
		return newError(CodeElementNotFound, sel+" not visible within "+timeout.String(), err)
	}
	return err
}

func (p *Page) IsVisible(ctx context.Context, sel string) (bool, error) {
	var visible bool
	err := p.Eval(ctx, jsIsVisible(sel), &visible)
	return visible, err
}

func (p *Page) Count(ctx context.Context, sel string) (int, error) {
	var n int
	err := p.Eval(ctx, jsCount(sel), &n)
	return n, err
}

func (p *Page) FieldInfo(ctx context.Context, sel string) (FieldInfo, error) {
	var info FieldInfo
	err := p.Eval(ctx, jsFieldState(sel), &info)
	return info, err
}

// VisibleText returns the text of the first visible element matching sel.
func (p *Page) VisibleText(ctx context.Context, sel string) (string, bool, error) {
	var res textResult
	if err := p.Eval(ctx, jsVisibleText(sel), &res); err != nil {
		return "", false, err
	}
	return res.Text, res.Visible, nil
}

// FindText searches visible text under scope ("" for the whole body) for a
// case-insensitive regular expression.
func (p *Page) FindText(ctx context.Context, scope, pattern string) (string, bool, error) {
	var res textResult
	if err := p.Eval(ctx, jsFindText(scope, pattern), &res); err != nil {
		return "", false, err
	}
	return res.Text, res.Visible, nil
}

// BoundingBox returns nil when the element is missing or not rendered.
func (p *Page) BoundingBox(ctx context.Context, sel string) (*Box, error) {
	var box *Box
	err := p.Eval(ctx, jsBoundingBox(sel), &box)
	return box, err
}

func (p *Page) ComputedStyle(ctx context.Context, sel string, props ...string) (map[string]string, error) {
	out := map[string]string{}
	err := p.Eval(ctx, jsComputedStyle(sel, props), &out)
	return out, err
}

// FindByRole marks every element matching q and returns a CSS selector for
// each, in document order.
func (p *Page) FindByRole(ctx context.Context, q RoleQuery) ([]string, error) {
	if strings.TrimSpace(q.Role) == "" {
		return nil, newError(CodeValidation, "role is required", nil)
	}
	prefix := fmt.Sprintf("fp%d", p.seq.Add(1))
	var sels []string
	if err := p.Eval(ctx, jsMarkByRole(q, prefix), &sels); err != nil {
		return nil, err
	}
	return sels, nil
}

// FirstByRole is FindByRole returning only the first match.
func (p *Page) FirstByRole(ctx context.Context, q RoleQuery) (string, error) {
	sels, err := p.FindByRole(ctx, q)
	if err != nil {
		return "", err
	}
	if len(sels) == 0 {
		return "", newError(CodeElementNotFound, fmt.Sprintf("no %s named %q", q.Role, q.Name), nil)
	}
	return sels[0], nil
}

func (p *Page) ScrollIntoView(ctx context.Context, sel string) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.ScrollIntoView(sel, chromedp.ByQuery))
}

// Focus moves keyboard focus to sel and reports whether it took.
func (p *Page) Focus(ctx context.Context, sel string) (bool, error) {
	var ok bool
	err := p.Eval(ctx, jsFocus(sel), &ok)
	return ok, err
}

func (p *Page) IsFocused(ctx context.Context, sel string) (bool, error) {
	var ok bool
	err := p.Eval(ctx, jsIsFocused(sel), &ok)
	return ok, err
}

// PressKey sends a key to whatever element has focus.
func (p *Page) PressKey(ctx context.Context, key string) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.KeyEvent(key))
}

// Screenshot captures the full page as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, newError(CodeEvalFailure, "screenshot", err)
	}
	return buf, nil
}

// HTML returns the rendered document markup.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", newError(CodeEvalFailure, "read html", err)
	}
	return html, nil
}

// Sleep pauses for d unless ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
