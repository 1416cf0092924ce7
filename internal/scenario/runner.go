package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgnsrekt/formprobe/internal/capture"
	"github.com/dgnsrekt/formprobe/internal/forms"
	"github.com/dgnsrekt/formprobe/internal/resolve"
	"github.com/dgnsrekt/formprobe/internal/rules"
	"github.com/dgnsrekt/formprobe/internal/verdict"
)

// ConsultationDriver is the part of *forms.ConsultationForm the runner uses.
type ConsultationDriver interface {
	FillForm(ctx context.Context, fields forms.Fields) error
	CheckValidity(ctx context.Context) rules.ValiditySnapshot
	Submit(ctx context.Context) error
	ForceSubmit(ctx context.Context) error
	PhoneValue(ctx context.Context) (string, error)
	PhoneValidationMessage(ctx context.Context) (string, error)
	SubmitAndWaitForCapture(ctx context.Context, timeout time.Duration) (*capture.Request, error)
}

// NewsletterDriver is the part of *forms.Newsletter the runner uses.
type NewsletterDriver interface {
	Fill(ctx context.Context, email string) error
	SubmitNearest(ctx context.Context, timeout time.Duration) (*capture.Request, error)
	HasValidationSignal(ctx context.Context) bool
	NativeValidationMessage(ctx context.Context) (string, error)
}

// OutcomeResolver is the part of *resolve.Resolver the runner uses.
type OutcomeResolver interface {
	ResolveOutcome(ctx context.Context, action func(context.Context) error, timeout time.Duration) (resolve.Outcome, error)
	WaitForCapture(ctx context.Context, timeout time.Duration) (capture.Request, bool)
	WaitForVerdict(ctx context.Context, timeout time.Duration) verdict.Alert
	WaitForText(ctx context.Context, scope string, patterns []string, timeout time.Duration) (string, bool)
	ClearCaptures()
}

var (
	_ ConsultationDriver = (*forms.ConsultationForm)(nil)
	_ NewsletterDriver   = (*forms.Newsletter)(nil)
	_ OutcomeResolver    = (*resolve.Resolver)(nil)
)

// Timeouts bounds each wait the runner performs.
type Timeouts struct {
	Outcome      time.Duration // submit until alert
	NoCapture    time.Duration // window in which no request may be sent
	Signal       time.Duration // validation copy to appear
	Subscription time.Duration // request for a valid submit
	Verdict      time.Duration // success alert after a valid subscription
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Outcome:      1200 * time.Millisecond,
		NoCapture:    800 * time.Millisecond,
		Signal:       1500 * time.Millisecond,
		Subscription: 3 * time.Second,
		Verdict:      3 * time.Second,
	}
}

// Result is what running one case observed.
type Result struct {
	Case       Case                   `json:"case"`
	Outcome    resolve.Outcome        `json:"outcome"`
	Snapshot   rules.ValiditySnapshot `json:"snapshot"`
	Status     Status                 `json:"status"`
	SignalSeen bool                   `json:"signal_seen"`

	// Problem describes the first broken expectation, "" when none.
	Problem string `json:"problem,omitempty"`
	// Err is set when the case could not be executed at all.
	Err error `json:"-"`
	// Ambiguous is true when Problem was downgraded to a warning.
	Ambiguous bool `json:"ambiguous"`
	// Skipped names what was missing for the check to run.
	Skipped string `json:"skipped,omitempty"`
}

func (r *Result) fail(format string, args ...any) {
	if r.Problem != "" {
		return
	}
	r.Problem = fmt.Sprintf(format, args...)
	r.Ambiguous = r.Case.KnownAmbiguous
}

// Check turns a Result into an error naming the case and what was observed.
// Known-ambiguous cases only log.
func Check(r Result) error {
	if r.Err != nil {
		return fmt.Errorf("[%s] %s: %w", r.Case.ID, r.Case.Label, r.Err)
	}
	if r.Problem == "" {
		if r.Skipped != "" {
			slog.Info("scenario case skipped", "case", r.Case.ID, "reason", r.Skipped)
		}
		return nil
	}
	if r.Case.KnownAmbiguous {
		slog.Warn("scenario ambiguous case", "case", r.Case.ID, "problem", r.Problem, "note", r.Case.Note)
		return nil
	}
	return fmt.Errorf("[%s] %s: %s", r.Case.ID, r.Case.Label, r.Problem)
}

// Runner plays cases against the page through the drivers.
type Runner struct {
	Form       ConsultationDriver
	Newsletter NewsletterDriver
	Resolver   OutcomeResolver
	Timeouts   Timeouts
}

func NewRunner(form ConsultationDriver, news NewsletterDriver, res OutcomeResolver) *Runner {
	return &Runner{Form: form, Newsletter: news, Resolver: res, Timeouts: DefaultTimeouts()}
}

// RunOutcomeCase fills base with the case input, submits and classifies the
// feedback alert. Invalid input must end in an error alert, valid input in
// a success alert. An invalid email must also be flagged by the form and
// never sent; valid input must be sent exactly once, carrying the address.
func (r *Runner) RunOutcomeCase(ctx context.Context, c Case, base forms.Fields) Result {
	res := Result{Case: c}
	if err := r.Form.FillForm(ctx, base.Merge(forms.Fields{c.Field: c.Input})); err != nil {
		res.Err = err
		return res
	}
	res.Snapshot = r.Form.CheckValidity(ctx)

	out, err := r.Resolver.ResolveOutcome(ctx, r.Form.Submit, r.Timeouts.Outcome)
	res.Outcome = out
	if err != nil {
		res.Err = err
		return res
	}
	got := out.Verdict()
	res.Status = ResolveStatus(c.DataType, got == verdict.Error, out.Success)

	switch {
	case c.DataType == Invalid && c.Field == rules.FieldEmail:
		if res.Snapshot.EmailValid {
			res.fail("form treats email %q as valid", c.Input)
		}
		if n := len(out.Requests); n > 0 {
			res.fail("invalid email %q was sent in %d request(s)", c.Input, n)
		}
	case c.DataType == Valid:
		email := base[rules.FieldEmail]
		if !res.Snapshot.SubmitEnabled {
			res.fail("submit is disabled, invalid fields: %v", res.Snapshot.Invalid())
		}
		switch n := len(out.Requests); {
		case n != 1:
			res.fail("%d request(s) sent, want 1", n)
		case !containsAddress(out.Requests[0], email):
			res.fail("request body %q does not carry %q", out.Requests[0].Body(), email)
		}
	}
	if res.Problem != "" {
		res.Status = Failed
	}

	switch {
	case c.DataType == Invalid && out.Success:
		res.fail("invalid input produced a success alert %q", out.Alert.Text)
	case got != c.Expect:
		res.fail("alert is %q, want %q (requests=%d)", got, c.Expect, len(out.Requests))
	}
	slog.Debug("scenario outcome case", "case", c.ID, "verdict", got, "status", res.Status)
	return res
}

// RunPhoneCase checks that an invalid phone never reaches the server. When
// the input mask swallows extra digits the form may still submit; that is
// only a failure if the site also reports success.
func (r *Runner) RunPhoneCase(ctx context.Context, c Case, base forms.Fields) Result {
	res := Result{Case: c}
	if err := r.Form.FillForm(ctx, base.Merge(forms.Fields{rules.FieldPhone: c.Input})); err != nil {
		res.Err = err
		return res
	}
	r.Resolver.ClearCaptures()

	typed := rules.Digits(c.Input)
	value, err := r.Form.PhoneValue(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	if inField := rules.Digits(value); inField != typed && len(typed) > 12 {
		out, err := r.Resolver.ResolveOutcome(ctx, r.Form.Submit, r.Timeouts.NoCapture)
		res.Outcome = out
		if err != nil {
			res.Err = err
			return res
		}
		if len(out.Requests) > 0 && (out.Success || c.KnownAmbiguous) {
			res.fail("form accepted too many digits and was sent (typed=%s, field=%s)", typed, inField)
		}
	}

	res.Snapshot = r.Form.CheckValidity(ctx)
	if res.Snapshot.SubmitEnabled {
		if c.KnownAmbiguous {
			res.fail("submit is enabled for phone %q", c.Input)
			return res
		}
		out, err := r.Resolver.ResolveOutcome(ctx, r.Form.Submit, r.Timeouts.NoCapture)
		res.Outcome = out
		if err != nil {
			res.Err = err
			return res
		}
		if len(out.Requests) > 0 {
			res.fail("request was sent for invalid phone %q", c.Input)
		}
		if out.Success {
			res.fail("invalid phone %q produced a success alert", c.Input)
		}
		res.Status = ResolveStatus(c.DataType, out.Verdict() == verdict.Error, out.Success)
		return res
	}

	if c.RequireSignal {
		if err := r.Form.ForceSubmit(ctx); err != nil {
			res.Err = err
			return res
		}
		_, res.SignalSeen = r.Resolver.WaitForText(ctx, "", PhoneValidationPatterns, r.Timeouts.Signal)
		if !res.SignalSeen {
			msg, err := r.Form.PhoneValidationMessage(ctx)
			if err != nil {
				slog.Debug("scenario phone validation read failed", "case", c.ID, "error", err)
			}
			res.SignalSeen = msg != ""
		}
		if !res.SignalSeen {
			res.fail("no validation message shown for phone %q", c.Input)
		}
	}
	if req, ok := r.Resolver.WaitForCapture(ctx, r.Timeouts.NoCapture); ok {
		res.Outcome.Requests = append(res.Outcome.Requests, req)
		res.fail("request was sent for invalid phone %q", c.Input)
	}
	res.Status = ResolveStatus(c.DataType, res.SignalSeen || !res.Snapshot.SubmitEnabled, false)
	return res
}

// RunEmptyForm submits a blank form. Nothing may be sent.
func (r *Runner) RunEmptyForm(ctx context.Context) Result {
	c := Case{ID: "TC-24", Label: "empty form", DataType: Invalid, Expect: verdict.Error}
	res := Result{Case: c}
	blank := forms.Fields{}
	for _, f := range rules.FieldOrder {
		blank[f] = ""
	}
	if err := r.Form.FillForm(ctx, blank); err != nil {
		res.Err = err
		return res
	}
	res.Snapshot = r.Form.CheckValidity(ctx)
	out, err := r.Resolver.ResolveOutcome(ctx, r.Form.Submit, r.Timeouts.NoCapture)
	res.Outcome = out
	if err != nil {
		res.Err = err
		return res
	}
	if len(out.Requests) > 0 {
		res.fail("empty form sent %d request(s)", len(out.Requests))
	}
	res.Status = ResolveStatus(c.DataType, len(out.Requests) == 0, out.Success)
	return res
}

// RunHappyPath submits a valid fill and expects the request to carry the
// address and the site to confirm. When the generated data does not pass
// the form's own checks the canonical fill is used instead.
func (r *Runner) RunHappyPath(ctx context.Context, data forms.Fields) Result {
	c := Case{ID: "TC-0", Label: "happy path", DataType: Valid, Expect: verdict.Success}
	res := Result{Case: c}
	if err := r.Form.FillForm(ctx, data); err != nil {
		res.Err = err
		return res
	}
	res.Snapshot = r.Form.CheckValidity(ctx)
	if !res.Snapshot.SubmitEnabled {
		slog.Info("scenario generated data rejected, using canonical fill", "invalid", res.Snapshot.Invalid())
		data = CanonicalData()
		if err := r.Form.FillForm(ctx, data); err != nil {
			res.Err = err
			return res
		}
		res.Snapshot = r.Form.CheckValidity(ctx)
	}
	c.Input = data[rules.FieldEmail]
	res.Case = c

	r.Resolver.ClearCaptures()
	req, err := r.Form.SubmitAndWaitForCapture(ctx, r.Timeouts.Subscription)
	if err != nil {
		res.Err = err
		return res
	}
	if req == nil {
		res.fail("no request was sent")
		res.Status = Failed
		return res
	}
	res.Outcome.Requests = []capture.Request{*req}
	if !containsAddress(*req, c.Input) {
		res.fail("request body %q does not carry %q", req.Body(), c.Input)
	}
	alert := r.Resolver.WaitForVerdict(ctx, r.Timeouts.Verdict)
	if alert.Verdict != verdict.None {
		res.Outcome.Alert = &alert
	}
	res.Outcome.Success = alert.Verdict == verdict.Success
	if !res.Outcome.Success {
		res.fail("alert is %q, want %q", alert.Verdict, verdict.Success)
	}
	res.Status = ResolveStatus(c.DataType, alert.Verdict == verdict.Error, res.Outcome.Success)
	return res
}

// submitNewsletter clears the buffer, submits the widget and collects every
// request sent plus any alert shown.
func (r *Runner) submitNewsletter(ctx context.Context, wait time.Duration) (resolve.Outcome, error) {
	var first []capture.Request
	out, err := r.Resolver.ResolveOutcome(ctx, func(ctx context.Context) error {
		req, err := r.Newsletter.SubmitNearest(ctx, wait)
		if req != nil {
			first = append(first, *req)
		}
		return err
	}, r.Timeouts.Outcome)
	out.Requests = append(first, out.Requests...)
	return out, err
}

// RunNewsletterInvalid types an invalid address and submits. Sending it is
// only a failure when the widget showed no validation signal either.
func (r *Runner) RunNewsletterInvalid(ctx context.Context, c Case) Result {
	res := Result{Case: c}
	if err := r.Newsletter.Fill(ctx, c.Input); err != nil {
		res.Err = err
		return res
	}
	out, err := r.submitNewsletter(ctx, r.Timeouts.NoCapture)
	res.Outcome = out
	if err != nil {
		res.Err = err
		return res
	}
	res.SignalSeen = r.Newsletter.HasValidationSignal(ctx)
	if len(out.Requests) > 0 && !res.SignalSeen {
		res.fail("invalid address %q was sent without a validation message", c.Input)
	}
	res.Status = ResolveStatus(c.DataType, res.SignalSeen, out.Success)
	return res
}

// RunNewsletterValid subscribes with a valid address. The request must be
// sent, carry the address and leave the input free of validation messages.
func (r *Runner) RunNewsletterValid(ctx context.Context, c Case) Result {
	res := Result{Case: c}
	if err := r.Newsletter.Fill(ctx, c.Input); err != nil {
		res.Err = err
		return res
	}
	out, err := r.submitNewsletter(ctx, r.Timeouts.Subscription)
	res.Outcome = out
	if err != nil {
		res.Err = err
		return res
	}
	switch {
	case len(out.Requests) == 0:
		res.fail("no request was sent for %q", c.Input)
	case !containsAddress(out.Requests[0], c.Input):
		res.fail("request body %q does not carry %q", out.Requests[0].Body(), c.Input)
	}
	msg, err := r.Newsletter.NativeValidationMessage(ctx)
	if err != nil {
		slog.Debug("scenario newsletter validation read failed", "case", c.ID, "error", err)
	}
	if msg != "" {
		res.fail("valid address %q has validation message %q", c.Input, msg)
	}
	res.Status = ResolveStatus(c.DataType, msg != "" || out.Verdict() == verdict.Error, res.Problem == "")
	return res
}

func containsAddress(req capture.Request, email string) bool {
	if v, ok := req.JSONField("email"); ok {
		return v == email
	}
	return strings.Contains(req.Body(), email)
}
