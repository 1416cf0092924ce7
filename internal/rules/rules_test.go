package rules

import (
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Ян", true},
		{"Тест Користувач", true},
		{"О'Нил-Петренко", true},
		{"  Ян  ", true},
		{"Я", false},
		{"Іван!@#123", false},
		{"", false},
		{"John2", false},
	}
	for _, tt := range tests {
		if got := Name(tt.in); got != tt.want {
			t.Errorf("Name(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEmailInvalidSet(t *testing.T) {
	invalid := []string{
		"", "usergmail.com", "user@", "@gmail.com", "user.@gmail.com", ".user@gmail.com",
		"user@gmail.com.", "use..r@gmail.com", "user@gm..il.com", "user@.gmail.com",
		"user@g_mail.com", "use r@mail.com", "test@gm#ail.com", "a@b@c.com", "user@gmail",
		"user@gmail.c", "user@-gmail.com",
	}
	for _, in := range invalid {
		if Email(in) {
			t.Errorf("Email(%q) = true, want false", in)
		}
	}
}

func TestEmailValidSet(t *testing.T) {
	valid := []string{"test@gmail.com", "user@mail.com", "first.last+tag@sub.example.org", " user@mail.com "}
	for _, in := range valid {
		if !Email(in) {
			t.Errorf("Email(%q) = false, want true", in)
		}
	}
}

func TestMessageBoundaries(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"nine", strings.Repeat("а", 9), false},
		{"ten", strings.Repeat("а", 10), true},
		{"padded_nine", "   " + strings.Repeat("b", 9) + "   ", false},
		{"two_thousand", strings.Repeat("а", 2000), true},
		{"two_thousand_one", strings.Repeat("а", 2001), false},
		{"raw_length_counts_padding", strings.Repeat("b", 1999) + "  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.in); got != tt.want {
				t.Fatalf("Message(len=%d) = %v, want %v", len(tt.in), got, tt.want)
			}
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"+380991234567", true},
		{"380991234567", true},
		{"+38 (099) 123-45-67", true},
		{"380abc123421", false},
		{"99123456789", false},
		{"38099123456", false},
		{"3809912345612", false},
		{"++380991234567", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Phone(tt.in); got != tt.want {
			t.Errorf("Phone(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("+38 (099) abc 123"); got != "38099123" {
		t.Fatalf("Digits = %q", got)
	}
}

func validStates() map[Field]FieldState {
	return map[Field]FieldState{
		FieldName:    {Value: "Ян", NativeValid: true, Readable: true},
		FieldEmail:   {Value: "user@mail.com", NativeValid: true, Readable: true},
		FieldPhone:   {Value: "+380991234567", NativeValid: true, Readable: true},
		FieldMessage: {Value: "Валідне повідомлення", NativeValid: true, Readable: true},
	}
}

func TestSnapshot(t *testing.T) {
	t.Run("all_valid", func(t *testing.T) {
		s := Snapshot(validStates())
		if !s.SubmitEnabled || len(s.Invalid()) != 0 {
			t.Fatalf("expected fully valid snapshot, got %+v", s)
		}
	})

	t.Run("native_invalid_fails_field", func(t *testing.T) {
		states := validStates()
		st := states[FieldEmail]
		st.NativeValid = false
		states[FieldEmail] = st
		s := Snapshot(states)
		if s.EmailValid || s.SubmitEnabled {
			t.Fatalf("expected email invalid, got %+v", s)
		}
	})

	t.Run("unreadable_is_fail_closed", func(t *testing.T) {
		states := validStates()
		states[FieldName] = FieldState{Value: "Ян", NativeValid: true, Readable: false}
		delete(states, FieldMessage)
		s := Snapshot(states)
		if s.NameValid || s.MessageValid || s.SubmitEnabled {
			t.Fatalf("expected fail-closed fields, got %+v", s)
		}
		inv := s.Invalid()
		if len(inv) != 2 || inv[0] != FieldName || inv[1] != FieldMessage {
			t.Fatalf("unexpected invalid list %v", inv)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		states := validStates()
		states[FieldPhone] = FieldState{Value: "38099123456", NativeValid: true, Readable: true}
		a, b := Snapshot(states), Snapshot(states)
		if a != b {
			t.Fatalf("snapshots differ: %+v vs %+v", a, b)
		}
		if a.PhoneValid || a.SubmitEnabled {
			t.Fatalf("expected phone invalid, got %+v", a)
		}
	})

	t.Run("submit_is_conjunction", func(t *testing.T) {
		for _, f := range FieldOrder {
			states := validStates()
			st := states[f]
			st.Value = ""
			states[f] = st
			s := Snapshot(states)
			want := s.NameValid && s.EmailValid && s.MessageValid && s.PhoneValid
			if s.SubmitEnabled != want || s.SubmitEnabled {
				t.Fatalf("field %s: submit %v, flags %+v", f, s.SubmitEnabled, s)
			}
		}
	})
}
