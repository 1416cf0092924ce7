// Package notify posts run summaries to an ntfy-style HTTP endpoint.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Summary is the outcome of one suite run.
type Summary struct {
	Suite     string
	Passed    int
	Failed    int
	Ambiguous int
	Failures  []string
}

func (s Summary) Title() string {
	if s.Failed > 0 {
		return fmt.Sprintf("formprobe %s: %d failed", s.Suite, s.Failed)
	}
	return fmt.Sprintf("formprobe %s: all passed", s.Suite)
}

// Message renders the summary as plain text, one failure per line.
func (s Summary) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "passed=%d failed=%d ambiguous=%d", s.Passed, s.Failed, s.Ambiguous)
	for _, f := range s.Failures {
		b.WriteString("\n")
		b.WriteString(f)
	}
	return b.String()
}

// SendSummary posts s to endpoint. Failed runs are sent with high priority.
func SendSummary(ctx context.Context, client *http.Client, endpoint string, s Summary) error {
	priority := "default"
	if s.Failed > 0 {
		priority = "high"
	}
	return send(ctx, client, endpoint, s.Message(), map[string]string{
		"Title":    s.Title(),
		"Priority": priority,
	})
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	return send(ctx, client, endpoint, message, nil)
}

func send(ctx context.Context, client *http.Client, endpoint, message string, headers map[string]string) error {
	if endpoint == "" {
		return errors.New("notify: empty endpoint")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
