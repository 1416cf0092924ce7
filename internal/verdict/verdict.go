// Package verdict classifies the text of the page's feedback alert.
package verdict

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the classification of a feedback message.
type Verdict string

const (
	Success Verdict = "success"
	Error   Verdict = "error"
	Other   Verdict = "other"
	None    Verdict = "none"
)

// Alert is a classified, visible feedback message.
type Alert struct {
	Verdict Verdict `json:"verdict"`
	Text    string  `json:"text"`
}

// Keywords are case-insensitive regexp fragments. They are locale and copy
// dependent, so callers may load them from a file.
type Keywords struct {
	Success []string `yaml:"success" json:"success"`
	Error   []string `yaml:"error" json:"error"`
}

// DefaultKeywords covers the Ukrainian and English copy of the site.
func DefaultKeywords() Keywords {
	return Keywords{
		Success: []string{"успішн", "дяку", "thank", "success", "відправлен"},
		Error:   []string{"помилк", "error", "невірн", "некоректн", "invalid", "коректн"},
	}
}

// Classifier maps alert text to a Verdict.
type Classifier struct {
	success *regexp.Regexp
	failure *regexp.Regexp
}

func NewClassifier(k Keywords) (*Classifier, error) {
	if len(k.Success) == 0 || len(k.Error) == 0 {
		return nil, fmt.Errorf("verdict: success and error keyword sets must be non-empty")
	}
	success, err := compile(k.Success)
	if err != nil {
		return nil, fmt.Errorf("verdict: success keywords: %w", err)
	}
	failure, err := compile(k.Error)
	if err != nil {
		return nil, fmt.Errorf("verdict: error keywords: %w", err)
	}
	return &Classifier{success: success, failure: failure}, nil
}

// MustDefault returns a classifier over DefaultKeywords.
func MustDefault() *Classifier {
	c, err := NewClassifier(DefaultKeywords())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns None for blank text. Success wins when both sets match.
func (c *Classifier) Classify(text string) Verdict {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return None
	case c.success.MatchString(text):
		return Success
	case c.failure.MatchString(text):
		return Error
	default:
		return Other
	}
}

// Alert classifies text into an Alert, or nil when the text is blank.
func (c *Classifier) Alert(text string) *Alert {
	v := c.Classify(text)
	if v == None {
		return nil
	}
	return &Alert{Verdict: v, Text: strings.TrimSpace(text)}
}

func compile(fragments []string) (*regexp.Regexp, error) {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, err := regexp.Compile(f); err != nil {
			return nil, fmt.Errorf("%q: %w", f, err)
		}
		parts = append(parts, "(?:"+f+")")
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no usable keywords")
	}
	return regexp.Compile("(?i)" + strings.Join(parts, "|"))
}
