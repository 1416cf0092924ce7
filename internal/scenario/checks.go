package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/formprobe/internal/cdpcontrol"
	"github.com/dgnsrekt/formprobe/internal/forms"
	"github.com/dgnsrekt/formprobe/internal/rules"
	"github.com/dgnsrekt/formprobe/internal/verdict"
)

// FormLayout is what the consultation layout checks read.
type FormLayout interface {
	FillForm(ctx context.Context, fields forms.Fields) error
	ElementCounts(ctx context.Context) (map[string]int, error)
	MessageHeight(ctx context.Context) (float64, error)
}

// NewsletterLayout is what the newsletter layout check reads.
type NewsletterLayout interface {
	InputCount(ctx context.Context) (int, error)
	Placeholder(ctx context.Context) (string, error)
	ButtonStyle(ctx context.Context) (forms.ButtonStyle, error)
}

// NewsletterKeyboard drives the newsletter field with the keyboard only.
type NewsletterKeyboard interface {
	Fill(ctx context.Context, email string) error
	FocusInputViaKeyboard(ctx context.Context, maxTabs int) (bool, error)
	FocusInput(ctx context.Context) (bool, error)
	PressTab(ctx context.Context) error
	PressEnter(ctx context.Context) error
}

// PageSignals counts side effects the page produced so far.
type PageSignals interface {
	DialogCount() int
	ServerErrorCount() int
}

var (
	_ FormLayout         = (*forms.ConsultationForm)(nil)
	_ NewsletterLayout   = (*forms.Newsletter)(nil)
	_ NewsletterKeyboard = (*forms.Newsletter)(nil)
)

// KeyboardAddress is the address typed by the keyboard check.
const KeyboardAddress = "keyboard@test.com"

// ConsultationXSSID identifies the consultation injection check. It runs
// after the numbered consultation cases.
const ConsultationXSSID = "SEC-1"

// settle is how long the page gets to react to an input before it is read
// again.
const settle = 300 * time.Millisecond

// RunElementPresence checks that the consultation form has its four fields
// and a submit button.
func (r *Runner) RunElementPresence(ctx context.Context, f FormLayout) Result {
	res := Result{Case: Case{ID: "TC-1", Label: "form elements present", DataType: Valid}}
	counts, err := f.ElementCounts(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	var missing []string
	for _, field := range rules.FieldOrder {
		if counts[string(field)] < 1 {
			missing = append(missing, string(field))
		}
	}
	if counts["submit"] < 1 {
		missing = append(missing, "submit")
	}
	if len(missing) > 0 {
		res.fail("missing elements: %s", strings.Join(missing, ", "))
	}
	res.Status = statusOf(res)
	return res
}

// RunMessageGrows types a thirty line message and checks that the textarea
// does not shrink.
func (r *Runner) RunMessageGrows(ctx context.Context, f FormLayout) Result {
	res := Result{Case: Case{ID: "TC-2", Label: "message field grows", Field: rules.FieldMessage, DataType: Valid}}
	before, err := f.MessageHeight(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "Line of text"
	}
	if err := f.FillForm(ctx, forms.Fields{rules.FieldMessage: strings.Join(lines, "\n")}); err != nil {
		res.Err = err
		return res
	}
	if err := cdpcontrol.Sleep(ctx, settle); err != nil {
		res.Err = err
		return res
	}
	after, err := f.MessageHeight(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	if after < before {
		res.fail("message field shrank from %.0fpx to %.0fpx", before, after)
	}
	res.Status = statusOf(res)
	return res
}

// RunNewsletterLayout checks the email input, its placeholder and the look
// of the subscribe button next to it. A page without a subscribe button is
// reported as skipped.
func (r *Runner) RunNewsletterLayout(ctx context.Context, n NewsletterLayout) Result {
	res := Result{Case: Case{ID: "TC-25", Label: "newsletter elements present", DataType: Valid}}
	count, err := n.InputCount(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	if count == 0 {
		res.fail("email input not found")
		res.Status = Failed
		return res
	}
	placeholder, err := n.Placeholder(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	if !strings.Contains(strings.ToLower(placeholder), "ваш") {
		res.fail("placeholder is %q, want it to mention \"ваш\"", placeholder)
	}

	style, err := n.ButtonStyle(ctx)
	if errors.Is(err, forms.ErrNoSubscribeButton) {
		res.Skipped = "subscribe button not found"
		res.Status = statusOf(res)
		return res
	}
	if err != nil {
		res.Err = err
		return res
	}
	if !style.Visible {
		res.fail("subscribe button is hidden")
	}
	if red, ok := style.Red(); ok && red < 150 {
		res.fail("subscribe button background %s is not red", style.BackgroundColor)
	}
	if style.BorderRadius == "0px" {
		res.fail("subscribe button has square corners")
	}
	res.Status = statusOf(res)
	return res
}

// RunNewsletterXSS submits a script tag and checks that no dialog opened and
// the server did not fail.
func (r *Runner) RunNewsletterXSS(ctx context.Context, page PageSignals) Result {
	c := Case{ID: "TC-40", Label: "script injection not executed", Input: XSSPayload, DataType: Invalid, Expect: verdict.Error}
	res := Result{Case: c}
	dialogs, serverErrs := page.DialogCount(), page.ServerErrorCount()

	if err := r.Newsletter.Fill(ctx, c.Input); err != nil {
		res.Err = err
		return res
	}
	r.Resolver.ClearCaptures()
	req, err := r.Newsletter.SubmitNearest(ctx, time.Second)
	if err != nil {
		res.Err = err
		return res
	}
	if req != nil {
		res.Outcome.Requests = append(res.Outcome.Requests, *req)
	}
	return r.settleInjection(ctx, res, page, dialogs, serverErrs)
}

// RunConsultationXSS puts a script tag into the name and message fields,
// forces a submit and checks that no dialog opened and the server did not
// fail.
func (r *Runner) RunConsultationXSS(ctx context.Context, page PageSignals) Result {
	c := Case{ID: ConsultationXSSID, Label: "script injection in free-text fields", Input: XSSPayload, DataType: Invalid, Expect: verdict.Error}
	res := Result{Case: c}
	dialogs, serverErrs := page.DialogCount(), page.ServerErrorCount()

	fill := BaseFields().Merge(forms.Fields{rules.FieldName: XSSPayload, rules.FieldMessage: XSSPayload})
	if err := r.Form.FillForm(ctx, fill); err != nil {
		res.Err = err
		return res
	}
	res.Snapshot = r.Form.CheckValidity(ctx)
	r.Resolver.ClearCaptures()
	if err := r.Form.ForceSubmit(ctx); err != nil {
		res.Err = err
		return res
	}
	if req, ok := r.Resolver.WaitForCapture(ctx, r.Timeouts.NoCapture); ok {
		res.Outcome.Requests = append(res.Outcome.Requests, req)
	}
	return r.settleInjection(ctx, res, page, dialogs, serverErrs)
}

// settleInjection gives the page time to run anything the payload smuggled
// in, then compares the dialog and 5xx counts with the ones taken before.
func (r *Runner) settleInjection(ctx context.Context, res Result, page PageSignals, dialogs, serverErrs int) Result {
	if err := cdpcontrol.Sleep(ctx, 500*time.Millisecond); err != nil {
		res.Err = err
		return res
	}
	if n := page.DialogCount() - dialogs; n > 0 {
		res.fail("%d dialog(s) opened after submitting %q", n, res.Case.Input)
	}
	if n := page.ServerErrorCount() - serverErrs; n > 0 {
		res.fail("server answered %d request(s) with 5xx", n)
	}
	res.Status = statusOf(res)
	return res
}

// RunNewsletterKeyboard reaches the email input with Tab, types an address
// and submits with Tab then Enter. A request must follow.
func (r *Runner) RunNewsletterKeyboard(ctx context.Context, n NewsletterKeyboard) Result {
	c := Case{ID: "TC-41", Label: "keyboard focus and submit", Input: KeyboardAddress, DataType: Valid, Expect: verdict.Success}
	res := Result{Case: c}
	focused, err := n.FocusInputViaKeyboard(ctx, 20)
	if err != nil {
		res.Err = err
		return res
	}
	if !focused {
		res.fail("email input never received focus from Tab")
		res.Status = Failed
		return res
	}
	if err := n.Fill(ctx, c.Input); err != nil {
		res.Err = err
		return res
	}
	if _, err := n.FocusInput(ctx); err != nil {
		res.Err = err
		return res
	}

	r.Resolver.ClearCaptures()
	for _, press := range []func(context.Context) error{n.PressTab, n.PressEnter} {
		if err := press(ctx); err != nil {
			res.Err = fmt.Errorf("keyboard submit: %w", err)
			return res
		}
	}
	req, ok := r.Resolver.WaitForCapture(ctx, r.Timeouts.Signal)
	if !ok {
		res.fail("no request was sent after Enter")
	} else {
		res.Outcome.Requests = append(res.Outcome.Requests, req)
	}
	res.Status = statusOf(res)
	return res
}

func statusOf(res Result) Status {
	if res.Problem != "" || res.Err != nil {
		return Failed
	}
	return Passed
}
