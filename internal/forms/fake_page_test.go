package forms

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/dgnsrekt/formprobe/internal/capture"
	"github.com/dgnsrekt/formprobe/internal/cdpcontrol"
)

var errDetached = errors.New("node is detached from document")

// fakePage is an in-memory stand-in for a browser tab.
type fakePage struct {
	mu        sync.Mutex
	values    map[string]string
	native    map[string]bool
	messages  map[string]string
	unread    map[string]bool
	visible   map[string]bool
	boxes     map[string]*cdpcontrol.Box
	styles    map[string]map[string]string
	roles     map[string][]string // role + "|" + name -> selectors
	texts     []string
	focusRing []string
	focused   int
	clicks    []string
	jsClicks  []string
	navigated []string
	fills     []string
	onClick   func(sel string)
}

func newFakePage() *fakePage {
	return &fakePage{
		values:   map[string]string{},
		native:   map[string]bool{},
		messages: map[string]string{},
		unread:   map[string]bool{},
		visible:  map[string]bool{},
		boxes:    map[string]*cdpcontrol.Box{},
		styles:   map[string]map[string]string{},
		roles:    map[string][]string{},
		focused:  -1,
	}
}

func (f *fakePage) NavigateWithRetry(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakePage) Fill(ctx context.Context, sel, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unread[sel] {
		return errDetached
	}
	f.values[sel] = value
	f.fills = append(f.fills, sel)
	return nil
}

func (f *fakePage) Click(ctx context.Context, sel string) error {
	f.mu.Lock()
	f.clicks = append(f.clicks, sel)
	hook := f.onClick
	f.mu.Unlock()
	if hook != nil {
		hook(sel)
	}
	return nil
}

func (f *fakePage) ClickJS(ctx context.Context, sel string) error {
	f.mu.Lock()
	f.jsClicks = append(f.jsClicks, sel)
	hook := f.onClick
	f.mu.Unlock()
	if hook != nil {
		hook(sel)
	}
	return nil
}

func (f *fakePage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visible[sel] {
		return nil
	}
	return fmt.Errorf("%s not visible", sel)
}

func (f *fakePage) IsVisible(ctx context.Context, sel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[sel], nil
}

func (f *fakePage) Count(ctx context.Context, sel string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[sel]; ok {
		return 1, nil
	}
	return 0, nil
}

func (f *fakePage) FieldInfo(ctx context.Context, sel string) (cdpcontrol.FieldInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unread[sel] {
		return cdpcontrol.FieldInfo{}, errDetached
	}
	native, ok := f.native[sel]
	if !ok {
		native = true
	}
	return cdpcontrol.FieldInfo{
		Value:             f.values[sel],
		NativeValid:       native,
		ValidationMessage: f.messages[sel],
		Placeholder:       f.styles[sel]["placeholder"],
		Visible:           f.visible[sel],
	}, nil
}

func (f *fakePage) FindText(ctx context.Context, scope, pattern string) (string, bool, error) {
	re := regexp.MustCompile("(?i)" + pattern)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.texts {
		if re.MatchString(t) {
			return t, true, nil
		}
	}
	return "", false, nil
}

func (f *fakePage) BoundingBox(ctx context.Context, sel string) (*cdpcontrol.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boxes[sel], nil
}

func (f *fakePage) ComputedStyle(ctx context.Context, sel string, props ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for _, p := range props {
		out[p] = f.styles[sel][p]
	}
	return out, nil
}

func (f *fakePage) FindByRole(ctx context.Context, q cdpcontrol.RoleQuery) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.roles[q.Role+"|"+q.Name]...), nil
}

func (f *fakePage) FirstByRole(ctx context.Context, q cdpcontrol.RoleQuery) (string, error) {
	sels, _ := f.FindByRole(ctx, q)
	if len(sels) == 0 {
		return "", fmt.Errorf("no %s named %q", q.Role, q.Name)
	}
	return sels[0], nil
}

func (f *fakePage) ScrollIntoView(ctx context.Context, sel string) error { return nil }

func (f *fakePage) Focus(ctx context.Context, sel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.focusRing {
		if s == sel {
			f.focused = i
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePage) IsFocused(ctx context.Context, sel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focused >= 0 && f.focused < len(f.focusRing) && f.focusRing[f.focused] == sel, nil
}

func (f *fakePage) PressKey(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == cdpcontrol.KeyTab && len(f.focusRing) > 0 {
		f.focused = (f.focused + 1) % len(f.focusRing)
	}
	return nil
}

// fakeCaptures hands out queued requests.
type fakeCaptures struct {
	mu    sync.Mutex
	queue []capture.Request
}

func (c *fakeCaptures) push(r capture.Request) {
	c.mu.Lock()
	c.queue = append(c.queue, r)
	c.mu.Unlock()
}

func (c *fakeCaptures) WaitForCapture(ctx context.Context, timeout time.Duration) (capture.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return capture.Request{}, false
	}
	r := c.queue[0]
	c.queue = c.queue[1:]
	return r, true
}
