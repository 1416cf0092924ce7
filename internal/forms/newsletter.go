package forms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/dgnsrekt/formprobe/internal/capture"
	"github.com/dgnsrekt/formprobe/internal/cdpcontrol"
)

// InlineValidationPattern matches the widget's own validation copy.
const InlineValidationPattern = `поле обов|не може|помилка|недійсн`

// ErrNoSubscribeButton means no visible subscribe button could be paired
// with the email input.
var ErrNoSubscribeButton = errors.New("subscribe button not found")

// Newsletter drives the email signup field and its subscribe button.
type Newsletter struct {
	page       Page
	captures   Captures
	inputName  string
	buttonName string
}

func NewNewsletter(page Page, captures Captures) *Newsletter {
	return &Newsletter{
		page:       page,
		captures:   captures,
		inputName:  "Ваша пошта",
		buttonName: "Отримати консультацію",
	}
}

// Input returns a selector for the first visible email textbox.
func (n *Newsletter) Input(ctx context.Context) (string, error) {
	return n.page.FirstByRole(ctx, cdpcontrol.RoleQuery{Role: "textbox", Name: n.inputName, VisibleOnly: true})
}

// InputCount counts visible email textboxes.
func (n *Newsletter) InputCount(ctx context.Context) (int, error) {
	sels, err := n.page.FindByRole(ctx, cdpcontrol.RoleQuery{Role: "textbox", Name: n.inputName, VisibleOnly: true})
	return len(sels), err
}

// Fill clears the input, then types email.
func (n *Newsletter) Fill(ctx context.Context, email string) error {
	in, err := n.Input(ctx)
	if err != nil {
		return fmt.Errorf("newsletter fill: %w", err)
	}
	if err := n.page.Fill(ctx, in, ""); err != nil {
		return fmt.Errorf("newsletter fill: %w", err)
	}
	if err := n.page.Fill(ctx, in, email); err != nil {
		return fmt.Errorf("newsletter fill: %w", err)
	}
	return nil
}

// NearestButton picks, among the subscribe buttons, the one whose centre
// is closest to the input's centre.
func (n *Newsletter) NearestButton(ctx context.Context) (string, error) {
	in, err := n.Input(ctx)
	if err != nil {
		return "", err
	}
	anchor, err := n.page.BoundingBox(ctx, in)
	if err != nil {
		return "", err
	}
	if anchor == nil {
		return "", ErrNoSubscribeButton
	}
	buttons, err := n.page.FindByRole(ctx, cdpcontrol.RoleQuery{Role: "button", Name: n.buttonName, VisibleOnly: true})
	if err != nil {
		return "", err
	}
	boxes := make([]*cdpcontrol.Box, len(buttons))
	for i, b := range buttons {
		box, err := n.page.BoundingBox(ctx, b)
		if err != nil {
			slog.Debug("forms button box read failed", "selector", b, "error", err)
			continue
		}
		boxes[i] = box
	}
	idx := nearestIndex(*anchor, boxes)
	if idx < 0 {
		return "", ErrNoSubscribeButton
	}
	return buttons[idx], nil
}

// nearestIndex returns the index of the box closest to anchor, skipping nil
// entries, or -1 when there is none. Ties keep the earliest.
func nearestIndex(anchor cdpcontrol.Box, boxes []*cdpcontrol.Box) int {
	best, bestDist := -1, math.Inf(1)
	for i, b := range boxes {
		if b == nil {
			continue
		}
		if d := anchor.Distance(*b); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// SubmitNearest clicks the nearest subscribe button and waits for the first
// captured request; nil means nothing was sent before timeout.
func (n *Newsletter) SubmitNearest(ctx context.Context, timeout time.Duration) (*capture.Request, error) {
	btn, err := n.NearestButton(ctx)
	if err != nil {
		return nil, fmt.Errorf("newsletter submit: %w", err)
	}
	if err := n.page.Click(ctx, btn); err != nil {
		return nil, fmt.Errorf("newsletter submit: %w", err)
	}
	req, ok := n.captures.WaitForCapture(ctx, timeout)
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// NativeValidationMessage is the browser's message for the input.
func (n *Newsletter) NativeValidationMessage(ctx context.Context) (string, error) {
	in, err := n.Input(ctx)
	if err != nil {
		return "", err
	}
	info, err := n.page.FieldInfo(ctx, in)
	return info.ValidationMessage, err
}

// Placeholder returns the input's placeholder attribute.
func (n *Newsletter) Placeholder(ctx context.Context) (string, error) {
	in, err := n.Input(ctx)
	if err != nil {
		return "", err
	}
	info, err := n.page.FieldInfo(ctx, in)
	return info.Placeholder, err
}

// HasInlineValidationMessage looks anywhere on the page for the widget's
// validation copy.
func (n *Newsletter) HasInlineValidationMessage(ctx context.Context) bool {
	_, found, err := n.page.FindText(ctx, "", InlineValidationPattern)
	if err != nil {
		slog.Debug("forms inline validation read failed", "error", err)
		return false
	}
	return found
}

// HasValidationSignal is true when either a native or an inline message is
// present.
func (n *Newsletter) HasValidationSignal(ctx context.Context) bool {
	msg, err := n.NativeValidationMessage(ctx)
	if err != nil {
		slog.Debug("forms native validation read failed", "error", err)
	}
	return msg != "" || n.HasInlineValidationMessage(ctx)
}

// FocusInputViaKeyboard focuses the first subscribe button and presses Tab
// until the email input has focus, at most maxTabs times.
func (n *Newsletter) FocusInputViaKeyboard(ctx context.Context, maxTabs int) (bool, error) {
	in, err := n.Input(ctx)
	if err != nil {
		return false, err
	}
	start, err := n.page.FirstByRole(ctx, cdpcontrol.RoleQuery{Role: "button", Name: n.buttonName, VisibleOnly: true})
	if err != nil {
		return false, err
	}
	if _, err := n.page.Focus(ctx, start); err != nil {
		return false, err
	}
	for i := 0; i < maxTabs; i++ {
		if err := n.page.PressKey(ctx, cdpcontrol.KeyTab); err != nil {
			return false, err
		}
		focused, err := n.page.IsFocused(ctx, in)
		if err != nil {
			return false, err
		}
		if focused {
			return true, nil
		}
	}
	return false, nil
}

// FocusInput puts keyboard focus on the email input.
func (n *Newsletter) FocusInput(ctx context.Context) (bool, error) {
	in, err := n.Input(ctx)
	if err != nil {
		return false, err
	}
	return n.page.Focus(ctx, in)
}

// PressTab sends Tab to the focused element.
func (n *Newsletter) PressTab(ctx context.Context) error {
	return n.page.PressKey(ctx, cdpcontrol.KeyTab)
}

// PressEnter sends Enter to the focused element.
func (n *Newsletter) PressEnter(ctx context.Context) error {
	return n.page.PressKey(ctx, cdpcontrol.KeyEnter)
}

// ButtonStyle is the computed look of the subscribe button.
type ButtonStyle struct {
	Visible         bool
	BackgroundColor string
	BorderRadius    string
}

// Red returns the red channel of an rgb()/rgba() background, ok=false for
// any other notation.
func (s ButtonStyle) Red() (int, bool) {
	r, _, _, ok := parseRGB(s.BackgroundColor)
	return r, ok
}

func (n *Newsletter) ButtonStyle(ctx context.Context) (ButtonStyle, error) {
	btn, err := n.NearestButton(ctx)
	if err != nil {
		return ButtonStyle{}, err
	}
	visible, err := n.page.IsVisible(ctx, btn)
	if err != nil {
		return ButtonStyle{}, err
	}
	css, err := n.page.ComputedStyle(ctx, btn, "background-color", "border-radius")
	if err != nil {
		return ButtonStyle{}, err
	}
	return ButtonStyle{
		Visible:         visible,
		BackgroundColor: css["background-color"],
		BorderRadius:    css["border-radius"],
	}, nil
}

var rgbPattern = regexp.MustCompile(`^rgba?\(\s*(\d+)[,\s]+(\d+)[,\s]+(\d+)`)

func parseRGB(s string) (r, g, b int, ok bool) {
	m := rgbPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, false
	}
	r, _ = strconv.Atoi(m[1])
	g, _ = strconv.Atoi(m[2])
	b, _ = strconv.Atoi(m[3])
	return r, g, b, true
}
