//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dgnsrekt/formprobe/internal/browser"
	"github.com/dgnsrekt/formprobe/internal/config"
	"github.com/dgnsrekt/formprobe/internal/scenario"
	"github.com/dgnsrekt/formprobe/internal/session"
)

var env *Env

// Env holds shared state for all integration tests.
type Env struct {
	Config *config.Config
}

func TestMain(m *testing.M) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration: %v\n", err)
		os.Exit(1)
	}
	env = &Env{Config: cfg}

	// A remote browser must answer before any session is opened.
	if cfg.BrowserMode == config.BrowserRemote && !cfg.LaunchBrowser {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		v, err := browser.Probe(ctx, cfg.GetCDPURL())
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "integration: browser not reachable at %s: %v\n", cfg.GetCDPURL(), err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "integration: using %s at %s\n", v.Product, cfg.GetCDPURL())
	}
	fmt.Fprintf(os.Stdout, "integration: site %s, intercept=%v\n", cfg.BaseURL, !cfg.RunProdReal)

	os.Exit(m.Run())
}

// openSession opens a fresh browser session named after the test and closes
// it when the test ends.
func openSession(t *testing.T) (context.Context, *session.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	s, err := session.Open(ctx, env.Config, session.WithTestName(t.Name()))
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("close session: %v", err)
		}
	})
	return ctx, s
}

// openConsultation opens a session and reveals the consultation form.
func openConsultation(t *testing.T) (context.Context, *session.Session, *scenario.Runner) {
	t.Helper()
	ctx, s := openSession(t)
	form := s.Consultation()
	if err := form.Open(ctx); err != nil {
		collect(t, ctx, s)
		t.Fatalf("open consultation form: %v", err)
	}
	return ctx, s, scenario.NewRunner(form, s.Newsletter(), s.Resolver())
}

// openNewsletter opens a session on the landing page.
func openNewsletter(t *testing.T) (context.Context, *session.Session, *scenario.Runner) {
	t.Helper()
	ctx, s := openSession(t)
	return ctx, s, scenario.NewRunner(s.Consultation(), s.Newsletter(), s.Resolver())
}

// requireResult fails the test with the case's message and stores
// diagnostics when the result is a failure.
func requireResult(t *testing.T, ctx context.Context, s *session.Session, res scenario.Result) {
	t.Helper()
	if res.Skipped != "" {
		t.Skip(res.Skipped)
	}
	if err := scenario.Check(res); err != nil {
		collect(t, ctx, s)
		t.Fatal(err)
	}
}

func collect(t *testing.T, ctx context.Context, s *session.Session) {
	t.Helper()
	meta, err := s.CollectDiagnostics(context.WithoutCancel(ctx), t.Name())
	if err != nil {
		t.Logf("diagnostics: %v", err)
		return
	}
	t.Logf("diagnostics stored as %s (%v)", meta.ID, meta.Files)
}
