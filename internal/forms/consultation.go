package forms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgnsrekt/formprobe/internal/capture"
	"github.com/dgnsrekt/formprobe/internal/cdpcontrol"
	"github.com/dgnsrekt/formprobe/internal/rules"
)

// Fields is a partial fill: only present keys are written.
type Fields map[rules.Field]string

// Merge returns a copy of f with every key of over applied on top.
func (f Fields) Merge(over Fields) Fields {
	out := make(Fields, len(f)+len(over))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// ConsultationSelectors locate the form's parts.
type ConsultationSelectors struct {
	Fields     map[rules.Field]string
	Form       string
	SubmitText string
	CTAText    string
}

func DefaultConsultationSelectors() ConsultationSelectors {
	return ConsultationSelectors{
		Fields: map[rules.Field]string{
			rules.FieldName:    "#user_name",
			rules.FieldEmail:   "#email",
			rules.FieldPhone:   "#phone",
			rules.FieldMessage: "#message",
		},
		Form:       "form:has(#user_name)",
		SubmitText: "Надіслати",
		CTAText:    "Отримати консультацію",
	}
}

// ConsultationForm drives the "request consultation" form.
type ConsultationForm struct {
	page        Page
	captures    Captures
	sel         ConsultationSelectors
	contactsURL string
	openTimeout time.Duration
}

func NewConsultationForm(page Page, captures Captures, contactsURL string) *ConsultationForm {
	return &ConsultationForm{
		page:        page,
		captures:    captures,
		sel:         DefaultConsultationSelectors(),
		contactsURL: contactsURL,
		openTimeout: 10 * time.Second,
	}
}

// Selector returns the CSS selector of a field.
func (f *ConsultationForm) Selector(field rules.Field) string {
	return f.sel.Fields[field]
}

// Open reveals the form: it clicks the call-to-action if there is one and,
// when the name field does not show up, falls back to the contacts page.
func (f *ConsultationForm) Open(ctx context.Context) error {
	nameSel := f.Selector(rules.FieldName)
	if cta, err := f.page.FirstByRole(ctx, cdpcontrol.RoleQuery{Role: "button", Name: f.sel.CTAText, VisibleOnly: true}); err == nil {
		_ = f.page.ScrollIntoView(ctx, cta)
		if err := f.page.ClickJS(ctx, cta); err != nil {
			slog.Debug("forms cta click failed", "error", err)
		}
	} else {
		slog.Debug("forms cta not found", "error", err)
	}

	err := f.page.WaitVisible(ctx, nameSel, f.openTimeout)
	if err == nil {
		return nil
	}
	slog.Info("forms consultation form not visible, falling back to contacts page", "url", f.contactsURL, "error", err)

	if err := f.page.NavigateWithRetry(ctx, f.contactsURL); err != nil {
		return fmt.Errorf("open consultation form: %w", err)
	}
	_ = f.page.ScrollIntoView(ctx, nameSel)
	if err := f.page.WaitVisible(ctx, nameSel, f.openTimeout); err != nil {
		return fmt.Errorf("open consultation form: %w", err)
	}
	return nil
}

// FillForm writes the given fields in name, email, phone, message order and
// leaves the others untouched.
func (f *ConsultationForm) FillForm(ctx context.Context, fields Fields) error {
	for _, field := range rules.FieldOrder {
		value, ok := fields[field]
		if !ok {
			continue
		}
		if err := f.page.Fill(ctx, f.Selector(field), value); err != nil {
			return fmt.Errorf("fill %s: %w", field, err)
		}
	}
	return nil
}

// CheckValidity re-reads every field. A field that cannot be read is
// reported invalid instead of failing the call.
func (f *ConsultationForm) CheckValidity(ctx context.Context) rules.ValiditySnapshot {
	states := make(map[rules.Field]rules.FieldState, len(rules.FieldOrder))
	for _, field := range rules.FieldOrder {
		info, err := f.page.FieldInfo(ctx, f.Selector(field))
		if err != nil {
			slog.Debug("forms field read failed", "field", field, "error", err)
			states[field] = rules.FieldState{}
			continue
		}
		states[field] = rules.FieldState{Value: info.Value, NativeValid: info.NativeValid, Readable: true}
	}
	return rules.Snapshot(states)
}

// IsSubmitEnabled is derived from field validity, not the button state.
func (f *ConsultationForm) IsSubmitEnabled(ctx context.Context) bool {
	return f.CheckValidity(ctx).SubmitEnabled
}

func (f *ConsultationForm) submitButton(ctx context.Context) (string, error) {
	return f.page.FirstByRole(ctx, cdpcontrol.RoleQuery{Role: "button", Name: f.sel.SubmitText, Scope: f.sel.Form})
}

// Submit clicks the form's submit button with a real mouse click.
func (f *ConsultationForm) Submit(ctx context.Context) error {
	btn, err := f.submitButton(ctx)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := f.page.Click(ctx, btn); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

// ForceSubmit clicks without waiting for the button to be actionable.
func (f *ConsultationForm) ForceSubmit(ctx context.Context) error {
	btn, err := f.submitButton(ctx)
	if err != nil {
		return fmt.Errorf("force submit: %w", err)
	}
	return f.page.ClickJS(ctx, btn)
}

// SubmitAndWaitForCapture submits and waits for the first intercepted
// request. It returns nil when none arrives in time.
func (f *ConsultationForm) SubmitAndWaitForCapture(ctx context.Context, timeout time.Duration) (*capture.Request, error) {
	if err := f.Submit(ctx); err != nil {
		return nil, err
	}
	req, ok := f.captures.WaitForCapture(ctx, timeout)
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// PhoneValue returns the phone field's current value.
func (f *ConsultationForm) PhoneValue(ctx context.Context) (string, error) {
	info, err := f.page.FieldInfo(ctx, f.Selector(rules.FieldPhone))
	return info.Value, err
}

// PhoneValidationMessage returns the browser's native message for the phone
// field, "" when it is valid.
func (f *ConsultationForm) PhoneValidationMessage(ctx context.Context) (string, error) {
	info, err := f.page.FieldInfo(ctx, f.Selector(rules.FieldPhone))
	return info.ValidationMessage, err
}

// MessageHeight is the rendered height of the message textarea.
func (f *ConsultationForm) MessageHeight(ctx context.Context) (float64, error) {
	box, err := f.page.BoundingBox(ctx, f.Selector(rules.FieldMessage))
	if err != nil {
		return 0, err
	}
	if box == nil {
		return 0, fmt.Errorf("message field is not rendered")
	}
	return box.Height, nil
}

// ElementCounts reports how many of each form part are present.
func (f *ConsultationForm) ElementCounts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(rules.FieldOrder)+1)
	for _, field := range rules.FieldOrder {
		n, err := f.page.Count(ctx, f.Selector(field))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", field, err)
		}
		out[string(field)] = n
	}
	btns, err := f.page.FindByRole(ctx, cdpcontrol.RoleQuery{Role: "button", Name: f.sel.SubmitText, Scope: f.sel.Form})
	if err != nil {
		return nil, fmt.Errorf("count submit: %w", err)
	}
	out["submit"] = len(btns)
	return out, nil
}
