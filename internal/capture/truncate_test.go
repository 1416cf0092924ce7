package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClipBody(t *testing.T) {
	long := `{"message":"` + strings.Repeat("Тест ", 10) + `"}`
	sum := sha256.Sum256([]byte(long))

	tests := []struct {
		name      string
		body      string
		max       int
		want      string
		truncated bool
	}{
		{name: "within limit", body: "hello world", max: 11, want: "hello world"},
		{name: "disabled", body: "hello world", max: 0, want: "hello world"},
		{name: "ascii cut", body: "hello world", max: 5, want: "hello", truncated: true},
		// "Т" is two bytes; a cut after its first byte backs off.
		{name: "rune boundary", body: "ТТ", max: 3, want: "Т", truncated: true},
		{name: "emoji", body: "😀😀", max: 5, want: "😀", truncated: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clipBody(tt.body, tt.max)
			if got.Body != tt.want || got.Truncated != tt.truncated {
				t.Fatalf("clipBody() = %+v, want body %q truncated=%v", got, tt.want, tt.truncated)
			}
			if got.Size != len(tt.body) {
				t.Fatalf("Size = %d, want %d", got.Size, len(tt.body))
			}
			if !tt.truncated && got.SHA256 != "" {
				t.Fatalf("digest set for an uncut body: %q", got.SHA256)
			}
		})
	}

	got := clipBody(long, 20)
	if !utf8.ValidString(got.Body) {
		t.Fatalf("clipped body is not valid UTF-8: %q", got.Body)
	}
	if got.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("SHA256 = %q", got.SHA256)
	}
}
