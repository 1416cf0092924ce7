package scenario

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/dgnsrekt/formprobe/internal/forms"
	"github.com/dgnsrekt/formprobe/internal/rules"
)

// CanonicalData is the fixed fill used when generated data is rejected.
func CanonicalData() forms.Fields {
	return forms.Fields{
		rules.FieldName:    "Тестовий Користувач",
		rules.FieldEmail:   "prodtest@example.com",
		rules.FieldPhone:   "+380501234567",
		rules.FieldMessage: "Тестове повідомлення",
	}
}

// ValidData generates a consultation fill from seed. The same seed always
// yields the same fill. Any generated value the field rules reject is
// replaced by its canonical counterpart.
func ValidData(seed int64) forms.Fields {
	f := gofakeit.New(uint64(seed))

	name := f.FirstName() + " " + f.LastName()
	local := strings.ToLower(f.FirstName() + "." + f.LastName())
	email := fmt.Sprintf("%s%d@example.com", local, f.IntRange(1, 999))
	phone := fmt.Sprintf("+380%09d", f.IntRange(100000000, 999999999))

	words := make([]string, 0, 8)
	for len(words) < 8 {
		words = append(words, f.Word())
	}
	message := strings.Join(words, " ")

	out := forms.Fields{
		rules.FieldName:    name,
		rules.FieldEmail:   email,
		rules.FieldPhone:   phone,
		rules.FieldMessage: message,
	}
	fallback := CanonicalData()
	checks := map[rules.Field]func(string) bool{
		rules.FieldName:    rules.Name,
		rules.FieldEmail:   rules.Email,
		rules.FieldPhone:   rules.Phone,
		rules.FieldMessage: rules.Message,
	}
	for field, ok := range checks {
		if !ok(out[field]) {
			out[field] = fallback[field]
		}
	}
	return out
}
