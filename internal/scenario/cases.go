package scenario

import (
	"strings"

	"github.com/dgnsrekt/formprobe/internal/forms"
	"github.com/dgnsrekt/formprobe/internal/rules"
	"github.com/dgnsrekt/formprobe/internal/verdict"
)

// Case is one row of a scenario table.
type Case struct {
	ID       string
	Label    string
	Field    rules.Field
	Input    string
	DataType DataType
	Expect   verdict.Verdict

	// KnownAmbiguous cases log a warning instead of failing: the site's
	// behavior for them is not settled.
	KnownAmbiguous bool
	// RequireSignal asks the phone runner to insist on a visible or native
	// validation message after a forced submit.
	RequireSignal bool
	// RecordedStatus is the status the manual test table holds for the
	// case. It is reported, never asserted.
	RecordedStatus Status
	Note           string
}

// XSSPayload is typed into free-text fields by the injection checks.
const XSSPayload = "<script>alert(1)</script>"

// BaseFields is a fully valid consultation fill. Case inputs are merged over
// it so the field under test is the only invalid one.
func BaseFields() forms.Fields {
	return forms.Fields{
		rules.FieldName:    "Тест Користувач",
		rules.FieldEmail:   "test@example.com",
		rules.FieldPhone:   "+380501234567",
		rules.FieldMessage: "Валідне повідомлення для перевірки",
	}
}

// EmailBaseFields is the fill used by the email table.
func EmailBaseFields() forms.Fields {
	return BaseFields().Merge(forms.Fields{rules.FieldPhone: "+380991234567"})
}

// PhoneBaseFields is the fill used by the phone table.
func PhoneBaseFields() forms.Fields {
	return BaseFields().Merge(forms.Fields{rules.FieldName: "Тест"})
}

// PhoneValidationPatterns match the copy the form shows for a bad phone.
var PhoneValidationPatterns = []string{
	"Будь ласка, введіть коректний номер телефону",
	`коректн.*номер`,
	`у форматі\s*380`,
	"380XXXXXXXXX",
	"Please enter a valid phone number",
}

var NameCases = []Case{
	{ID: "TC-3", Label: "forbidden characters in name", Field: rules.FieldName, Input: "Іван!@#123", DataType: Invalid, Expect: verdict.Error},
	{ID: "TC-4", Label: "single-letter name", Field: rules.FieldName, Input: "Я", DataType: Invalid, Expect: verdict.Error},
	{ID: "TC-5", Label: "two-letter name", Field: rules.FieldName, Input: "Ян", DataType: Valid, Expect: verdict.Success},
}

var ConsultationEmailCases = []Case{
	emailCase("TC-6", "usergmail.com", "missing @", Passed),
	emailCase("TC-7", "user@", "missing domain", Passed),
	emailCase("TC-8", "@gmail.com", "missing local part", Passed),
	emailCase("TC-9", "user.@gmail.com", "dot at end of local part", Failed),
	emailCase("TC-10", ".user@gmail.com", "dot at start of local part", Failed),
	emailCase("TC-11", "user@gmail.com.", "dot at end of domain", Failed),
	emailCase("TC-12", "use..r@gmail.com", "double dot in local part", Failed),
	emailCase("TC-13", "user@gm..il.com", "double dot in domain", Failed),
	emailCase("TC-14", "user@.gmail.com", "dot at start of domain", Failed),
	emailCase("TC-15", "user@g_mail.com", "special character in domain", Failed),
	emailCase("TC-16", "use r@mail.com", "space inside address", Passed),
}

func emailCase(id, input, label string, recorded Status) Case {
	return Case{
		ID:             id,
		Label:          label,
		Field:          rules.FieldEmail,
		Input:          input,
		DataType:       Invalid,
		Expect:         verdict.Error,
		RecordedStatus: recorded,
	}
}

var PhoneCases = []Case{
	{ID: "TC-17", Label: "non-digit characters in phone", Field: rules.FieldPhone, Input: "380abc123421", DataType: Invalid, Expect: verdict.Error, RequireSignal: true},
	{ID: "TC-18", Label: "phone not starting with 380", Field: rules.FieldPhone, Input: "99123456789", DataType: Invalid, Expect: verdict.Error},
	{ID: "TC-19", Label: "phone too short", Field: rules.FieldPhone, Input: "38099123456", DataType: Invalid, Expect: verdict.Error, RequireSignal: true},
	{ID: "TC-20", Label: "phone too long", Field: rules.FieldPhone, Input: "3809912345612", DataType: Invalid, Expect: verdict.Error, KnownAmbiguous: true,
		Note: "the input mask may truncate extra digits"},
}

var MessageLengthCases = []Case{
	{ID: "TC-21", Label: "message below minimum length", Field: rules.FieldMessage, Input: strings.Repeat("a", rules.MessageMinRunes-1), DataType: Invalid, Expect: verdict.Error},
	{ID: "TC-22", Label: "message at maximum length", Field: rules.FieldMessage, Input: strings.Repeat("a", rules.MessageMaxRunes), DataType: Valid, Expect: verdict.Success},
	{ID: "TC-23", Label: "message above maximum length", Field: rules.FieldMessage, Input: strings.Repeat("a", rules.MessageMaxRunes+1), DataType: Invalid, Expect: verdict.Error},
}

var NewsletterValidCases = []Case{
	{ID: "TC-26", Label: "valid subscription", Field: rules.FieldEmail, Input: "test@gmail.com", DataType: Valid, Expect: verdict.Success},
}

var NewsletterInvalidCases = []Case{
	newsletterCase("TC-27", "", "empty field"),
	newsletterCase("TC-28", "testgmail.com", "missing @"),
	newsletterCase("TC-29", "test@", "missing domain"),
	newsletterCase("TC-30", "@gmail.com", "missing local part"),
	newsletterCase("TC-31", "te st@gm.com", "space inside address"),
	newsletterCase("TC-32", ".test@gm.com", "leading dot"),
	newsletterCase("TC-33", "test.@gm.com", "dot before @"),
	newsletterCase("TC-34", "te..st@gm.com", "double dot"),
	newsletterCase("TC-35", "test@.gm.com", "dot at start of domain"),
	newsletterCase("TC-36", "test@gm.com.", "dot at end of domain"),
	newsletterCase("TC-37", "test@gm..com", "double dot in domain"),
	newsletterCase("TC-38", "test@gm#ail.com", "special character in domain"),
	{ID: "TC-39", Label: "address longer than 255", Field: rules.FieldEmail, Input: strings.Repeat("a", 256) + "@x.com", DataType: Invalid, Expect: verdict.Error, KnownAmbiguous: true,
		Note: "no length limit is documented for the field"},
}

func newsletterCase(id, input, label string) Case {
	return Case{ID: id, Label: label, Field: rules.FieldEmail, Input: input, DataType: Invalid, Expect: verdict.Error}
}
