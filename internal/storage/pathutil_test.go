package storage

import "testing"

func TestSafeSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TC-26", "TC-26"},
		{"TC-3 name with symbols", "TC-3_name_with_symbols"},
		{"../../etc/passwd", "etc_passwd"},
		{"  Ім'я  ", "unnamed"},
		{"", "unnamed"},
		{"a//b", "a_b"},
	}
	for _, tt := range tests {
		if got := SafeSegment(tt.in); got != tt.want {
			t.Errorf("SafeSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
