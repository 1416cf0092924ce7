package rules

// Field names a consultation form input.
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
	FieldMessage Field = "message"
)

// FieldOrder is the order fields are filled and read in.
var FieldOrder = []Field{FieldName, FieldEmail, FieldPhone, FieldMessage}

// FieldState is one live read of an input. Readable is false when the read
// itself failed; such a field is never valid.
type FieldState struct {
	Value       string
	NativeValid bool
	Readable    bool
}

// ValiditySnapshot is a point-in-time read of per-field validity.
// SubmitEnabled is always the conjunction of the four field flags.
type ValiditySnapshot struct {
	NameValid     bool `json:"nameValid"`
	EmailValid    bool `json:"emailValid"`
	MessageValid  bool `json:"messageValid"`
	PhoneValid    bool `json:"phoneValid"`
	SubmitEnabled bool `json:"submitEnabled"`
}

// Snapshot evaluates every field. Missing entries count as unreadable.
func Snapshot(states map[Field]FieldState) ValiditySnapshot {
	check := func(f Field, rule func(string) bool, needNative bool) bool {
		st, ok := states[f]
		if !ok || !st.Readable {
			return false
		}
		if needNative && !st.NativeValid {
			return false
		}
		return rule(st.Value)
	}
	s := ValiditySnapshot{
		NameValid:    check(FieldName, Name, true),
		EmailValid:   check(FieldEmail, Email, true),
		MessageValid: check(FieldMessage, Message, true),
		PhoneValid:   check(FieldPhone, Phone, false),
	}
	s.SubmitEnabled = s.NameValid && s.EmailValid && s.MessageValid && s.PhoneValid
	return s
}

// Invalid lists the fields that failed, in FieldOrder.
func (s ValiditySnapshot) Invalid() []Field {
	var out []Field
	flags := map[Field]bool{
		FieldName:    s.NameValid,
		FieldEmail:   s.EmailValid,
		FieldPhone:   s.PhoneValid,
		FieldMessage: s.MessageValid,
	}
	for _, f := range FieldOrder {
		if !flags[f] {
			out = append(out, f)
		}
	}
	return out
}
