// Package forms drives the two widgets under test: the consultation request
// form and the newsletter signup field.
package forms

import (
	"context"
	"time"

	"github.com/dgnsrekt/formprobe/internal/capture"
	"github.com/dgnsrekt/formprobe/internal/cdpcontrol"
)

// Page is the slice of cdpcontrol.Page the drivers use.
type Page interface {
	NavigateWithRetry(ctx context.Context, url string) error
	Fill(ctx context.Context, sel, value string) error
	Click(ctx context.Context, sel string) error
	ClickJS(ctx context.Context, sel string) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	IsVisible(ctx context.Context, sel string) (bool, error)
	Count(ctx context.Context, sel string) (int, error)
	FieldInfo(ctx context.Context, sel string) (cdpcontrol.FieldInfo, error)
	FindText(ctx context.Context, scope, pattern string) (string, bool, error)
	BoundingBox(ctx context.Context, sel string) (*cdpcontrol.Box, error)
	ComputedStyle(ctx context.Context, sel string, props ...string) (map[string]string, error)
	FindByRole(ctx context.Context, q cdpcontrol.RoleQuery) ([]string, error)
	FirstByRole(ctx context.Context, q cdpcontrol.RoleQuery) (string, error)
	ScrollIntoView(ctx context.Context, sel string) error
	Focus(ctx context.Context, sel string) (bool, error)
	IsFocused(ctx context.Context, sel string) (bool, error)
	PressKey(ctx context.Context, key string) error
}

// Captures waits for intercepted requests. *resolve.Resolver implements it.
type Captures interface {
	WaitForCapture(ctx context.Context, timeout time.Duration) (capture.Request, bool)
}

var _ Page = (*cdpcontrol.Page)(nil)
