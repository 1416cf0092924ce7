package scenario

import (
	"context"
	"time"

	"github.com/dgnsrekt/formprobe/internal/capture"
	"github.com/dgnsrekt/formprobe/internal/forms"
	"github.com/dgnsrekt/formprobe/internal/resolve"
	"github.com/dgnsrekt/formprobe/internal/rules"
	"github.com/dgnsrekt/formprobe/internal/verdict"
)

// fakeForm validates its last fill with the real field rules.
type fakeForm struct {
	fills        []forms.Fields
	phoneValue   string // overrides the filled phone when set
	nativeMsg    string
	submits      int
	forceSubmits int
	submitErr    error
	captured     *capture.Request
}

func (f *fakeForm) last() forms.Fields {
	if len(f.fills) == 0 {
		return forms.Fields{}
	}
	return f.fills[len(f.fills)-1]
}

func (f *fakeForm) FillForm(ctx context.Context, fields forms.Fields) error {
	f.fills = append(f.fills, fields)
	return nil
}

func (f *fakeForm) CheckValidity(ctx context.Context) rules.ValiditySnapshot {
	states := make(map[rules.Field]rules.FieldState)
	for k, v := range f.last() {
		if k == rules.FieldPhone && f.phoneValue != "" {
			v = f.phoneValue
		}
		states[k] = rules.FieldState{Value: v, NativeValid: true, Readable: true}
	}
	return rules.Snapshot(states)
}

func (f *fakeForm) Submit(ctx context.Context) error {
	f.submits++
	return f.submitErr
}

func (f *fakeForm) ForceSubmit(ctx context.Context) error {
	f.forceSubmits++
	return nil
}

func (f *fakeForm) PhoneValue(ctx context.Context) (string, error) {
	if f.phoneValue != "" {
		return f.phoneValue, nil
	}
	return f.last()[rules.FieldPhone], nil
}

func (f *fakeForm) PhoneValidationMessage(ctx context.Context) (string, error) {
	return f.nativeMsg, nil
}

func (f *fakeForm) SubmitAndWaitForCapture(ctx context.Context, timeout time.Duration) (*capture.Request, error) {
	f.submits++
	return f.captured, nil
}

type fakeNewsletter struct {
	filled    []string
	sent      *capture.Request
	signal    bool
	nativeMsg string
}

func (n *fakeNewsletter) Fill(ctx context.Context, email string) error {
	n.filled = append(n.filled, email)
	return nil
}

func (n *fakeNewsletter) SubmitNearest(ctx context.Context, timeout time.Duration) (*capture.Request, error) {
	return n.sent, nil
}

func (n *fakeNewsletter) HasValidationSignal(ctx context.Context) bool { return n.signal }

func (n *fakeNewsletter) NativeValidationMessage(ctx context.Context) (string, error) {
	return n.nativeMsg, nil
}

type fakeResolver struct {
	outcome   resolve.Outcome
	late      *capture.Request // returned by WaitForCapture
	text      string
	alert     verdict.Alert
	cleared   int
	resolves  int
	textCalls int
}

func (r *fakeResolver) ResolveOutcome(ctx context.Context, action func(context.Context) error, timeout time.Duration) (resolve.Outcome, error) {
	r.resolves++
	if action != nil {
		if err := action(ctx); err != nil {
			return resolve.Outcome{}, err
		}
	}
	return r.outcome, nil
}

func (r *fakeResolver) WaitForCapture(ctx context.Context, timeout time.Duration) (capture.Request, bool) {
	if r.late == nil {
		return capture.Request{}, false
	}
	return *r.late, true
}

func (r *fakeResolver) WaitForVerdict(ctx context.Context, timeout time.Duration) verdict.Alert {
	if r.alert.Verdict == "" {
		return verdict.Alert{Verdict: verdict.None}
	}
	return r.alert
}

func (r *fakeResolver) WaitForText(ctx context.Context, scope string, patterns []string, timeout time.Duration) (string, bool) {
	r.textCalls++
	return r.text, r.text != ""
}

func (r *fakeResolver) ClearCaptures() { r.cleared++ }

func strPtr(s string) *string { return &s }

func jsonRequest(body string) *capture.Request {
	return &capture.Request{URL: "https://softpro.ua/api/send", Method: "POST", PostData: strPtr(body)}
}
