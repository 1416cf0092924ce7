package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Header:     make(http.Header),
	}
}

func TestSendSummaryPostsFailures(t *testing.T) {
	ctx := context.Background()

	var got *http.Request
	var body string
	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			got = r
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			body = string(raw)
			return okResponse(), nil
		}),
	}

	s := Summary{Suite: "consultation", Passed: 20, Failed: 2, Ambiguous: 1,
		Failures: []string{"[TC-9] dot at end of local part: alert is \"none\", want \"error\""}}
	if err := SendSummary(ctx, client, "http://example.com/formprobe", s); err != nil {
		t.Fatalf("SendSummary() error = %v", err)
	}

	if got.Method != http.MethodPost || got.URL.Path != "/formprobe" {
		t.Fatalf("request = %s %s", got.Method, got.URL.Path)
	}
	if got.Header.Get("Content-Type") != "text/plain" {
		t.Fatalf("content-type = %q", got.Header.Get("Content-Type"))
	}
	if got.Header.Get("Priority") != "high" {
		t.Fatalf("priority = %q; want high", got.Header.Get("Priority"))
	}
	if got.Header.Get("Title") != "formprobe consultation: 2 failed" {
		t.Fatalf("title = %q", got.Header.Get("Title"))
	}
	if !strings.HasPrefix(body, "passed=20 failed=2 ambiguous=1\n[TC-9]") {
		t.Fatalf("body = %q", body)
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	ctx := context.Background()

	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := Send(ctx, client, "http://example.com/notifications", "hello")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "ntfy notification failed") {
		t.Fatalf("error = %q; want to contain %q", err, "ntfy notification failed")
	}
}

func TestSendDisallowsMissingEndpoint(t *testing.T) {
	ctx := context.Background()
	if err := Send(ctx, http.DefaultClient, "", "hello"); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestSummaryTitleAllPassed(t *testing.T) {
	s := Summary{Suite: "newsletter", Passed: 15}
	if got := s.Title(); got != "formprobe newsletter: all passed" {
		t.Fatalf("Title() = %q", got)
	}
	if got := s.Message(); got != "passed=15 failed=0 ambiguous=0" {
		t.Fatalf("Message() = %q", got)
	}
}
