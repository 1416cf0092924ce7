// Package intercept captures the page's outbound API calls and answers them
// with a synthetic success so no real traffic reaches the backend.
package intercept

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/gobwas/glob"

	"github.com/dgnsrekt/formprobe/internal/capture"
)

// Mode selects between fulfilling matched calls and merely observing them.
type Mode int

const (
	ModeIntercept Mode = iota
	ModePassThrough
)

func (m Mode) String() string {
	if m == ModePassThrough {
		return "pass-through"
	}
	return "intercept"
}

// ServerError is a response with a 5xx status seen on the page.
type ServerError struct {
	URL    string `json:"url"`
	Status int64  `json:"status"`
}

// Interceptor owns the Fetch-domain hook for one browser tab.
type Interceptor struct {
	buf        *capture.Buffer
	pattern    string
	cdpPattern string
	match      glob.Glob
	mode       Mode

	mu           sync.Mutex
	active       bool
	installed    bool
	serverErrors []ServerError
	fulfilled    int
}

// New compiles pattern, a glob over the full request URL in which "**"
// crosses path separators and "*" does not.
func New(buf *capture.Buffer, pattern string, mode Mode) (*Interceptor, error) {
	if buf == nil {
		return nil, fmt.Errorf("intercept: capture buffer is required")
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, fmt.Errorf("intercept: pattern is required")
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("intercept: compile %q: %w", pattern, err)
	}
	return &Interceptor{
		buf:        buf,
		pattern:    pattern,
		cdpPattern: cdpURLPattern(pattern),
		match:      g,
		mode:       mode,
	}, nil
}

// cdpURLPattern converts the glob to the Fetch domain's wildcard syntax,
// which only knows "*" and "?".
func cdpURLPattern(pattern string) string {
	for strings.Contains(pattern, "**") {
		pattern = strings.ReplaceAll(pattern, "**", "*")
	}
	return pattern
}

func (i *Interceptor) Mode() Mode { return i.mode }

// Matches reports whether url is an API call this interceptor captures.
func (i *Interceptor) Matches(url string) bool {
	return i.match.Match(url)
}

// Install registers the listeners on the tab context and enables the
// domains. In pass-through mode only the Network domain is enabled and
// matching requests are recorded without being touched.
func (i *Interceptor) Install(ctx context.Context) error {
	i.mu.Lock()
	if i.installed {
		i.active = true
		i.mu.Unlock()
		return nil
	}
	i.installed = true
	i.active = true
	i.mu.Unlock()

	chromedp.ListenTarget(ctx, func(ev any) { i.handle(ctx, ev) })

	actions := []chromedp.Action{network.Enable()}
	if i.mode == ModeIntercept {
		actions = append(actions, fetch.Enable().WithPatterns([]*fetch.RequestPattern{{
			URLPattern:   i.cdpPattern,
			RequestStage: fetch.RequestStageRequest,
		}}))
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("intercept: enable: %w", err)
	}
	slog.Info("intercept installed", "mode", i.mode, "pattern", i.pattern, "cdp_pattern", i.cdpPattern)
	return nil
}

// Uninstall disables the Fetch domain. Calling it more than once, or before
// Install, is a no-op.
func (i *Interceptor) Uninstall(ctx context.Context) error {
	i.mu.Lock()
	wasActive := i.active
	i.active = false
	i.mu.Unlock()
	if !wasActive || i.mode != ModeIntercept {
		return nil
	}
	if err := chromedp.Run(ctx, fetch.Disable()); err != nil {
		return fmt.Errorf("intercept: disable: %w", err)
	}
	slog.Debug("intercept uninstalled", "pattern", i.pattern)
	return nil
}

// ServerErrors returns every 5xx response observed so far.
func (i *Interceptor) ServerErrors() []ServerError {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]ServerError, len(i.serverErrors))
	copy(out, i.serverErrors)
	return out
}

// Fulfilled counts requests answered with the synthetic response.
func (i *Interceptor) Fulfilled() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fulfilled
}

func (i *Interceptor) isActive() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.active
}

func (i *Interceptor) handle(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		i.onPaused(ctx, e)
	case *network.EventRequestWillBeSent:
		if i.mode == ModePassThrough && i.isActive() && e.Request != nil && i.Matches(e.Request.URL) {
			i.buf.Append(capture.FromNetworkRequest(e.Request))
			slog.Debug("intercept request observed", "method", e.Request.Method, "url", e.Request.URL)
		}
	case *network.EventResponseReceived:
		if e.Response != nil && e.Response.Status >= http.StatusInternalServerError {
			i.mu.Lock()
			i.serverErrors = append(i.serverErrors, ServerError{URL: e.Response.URL, Status: e.Response.Status})
			i.mu.Unlock()
			slog.Warn("intercept server error observed", "url", e.Response.URL, "status", e.Response.Status)
		}
	}
}

// onPaused runs on the listener goroutine, so the capture is appended here
// to keep arrival order; the CDP reply is sent from a new goroutine because
// listeners must not block.
func (i *Interceptor) onPaused(ctx context.Context, e *fetch.EventRequestPaused) {
	if e.Request == nil || !i.isActive() || !i.Matches(e.Request.URL) || e.Request.Method == http.MethodOptions {
		go i.exec(ctx, fetch.ContinueRequest(e.RequestID), "continue")
		return
	}

	req := capture.FromNetworkRequest(e.Request)
	i.buf.Append(req)
	slog.Debug("intercept request captured", "method", req.Method, "url", req.URL, "has_body", req.PostData != nil)

	body, err := syntheticBody(req.PostData)
	if err != nil {
		slog.Warn("intercept synthetic body failed", "error", err)
		go i.exec(ctx, fetch.ContinueRequest(e.RequestID), "continue")
		return
	}
	i.mu.Lock()
	i.fulfilled++
	i.mu.Unlock()
	go i.exec(ctx, fetch.FulfillRequest(e.RequestID, http.StatusOK).
		WithResponseHeaders([]*fetch.HeaderEntry{
			{Name: "Content-Type", Value: "application/json"},
			{Name: "Access-Control-Allow-Origin", Value: "*"},
		}).
		WithBody(base64.StdEncoding.EncodeToString(body)), "fulfill")
}

func (i *Interceptor) exec(ctx context.Context, action chromedp.Action, what string) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	if err := action.Do(cdp.WithExecutor(ctx, c.Target)); err != nil {
		slog.Debug("intercept reply failed", "action", what, "error", err)
	}
}

type syntheticResponse struct {
	Intercepted  bool    `json:"intercepted"`
	OriginalBody *string `json:"originalBody"`
}

func syntheticBody(original *string) ([]byte, error) {
	return json.Marshal(syntheticResponse{Intercepted: true, OriginalBody: original})
}
