// Package session owns one browser tab for the duration of a test: the
// allocator, the request interceptor, the capture buffer and its journal,
// and everything torn down afterwards.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/dgnsrekt/formprobe/internal/artifacts"
	"github.com/dgnsrekt/formprobe/internal/browser"
	"github.com/dgnsrekt/formprobe/internal/capture"
	"github.com/dgnsrekt/formprobe/internal/cdpcontrol"
	"github.com/dgnsrekt/formprobe/internal/config"
	"github.com/dgnsrekt/formprobe/internal/forms"
	"github.com/dgnsrekt/formprobe/internal/intercept"
	"github.com/dgnsrekt/formprobe/internal/relay"
	"github.com/dgnsrekt/formprobe/internal/resolve"
	"github.com/dgnsrekt/formprobe/internal/storage"
	"github.com/dgnsrekt/formprobe/internal/verdict"
)

type options struct {
	testName string
	navigate bool
	startURL string
	broker   *relay.Broker
}

// Option tweaks Open.
type Option func(*options)

// WithTestName labels the journal and diagnostics of the session.
func WithTestName(name string) Option {
	return func(o *options) { o.testName = name }
}

// WithStartURL navigates to url instead of the configured base URL.
func WithStartURL(url string) Option {
	return func(o *options) { o.startURL = url }
}

// WithLiveFeed publishes every captured request on b.
func WithLiveFeed(b *relay.Broker) Option {
	return func(o *options) { o.broker = b }
}

// WithoutNavigation leaves the tab on about:blank.
func WithoutNavigation() Option {
	return func(o *options) { o.navigate = false }
}

// Session is the explicit per-test context.
type Session struct {
	id  string
	cfg *config.Config

	page        *cdpcontrol.Page
	buf         *capture.Buffer
	interceptor *intercept.Interceptor
	resolver    *resolve.Resolver
	store       *artifacts.Store
	journal     *storage.JSONLWriter
	testName    string

	dialogs atomic.Int64

	cleanupMu sync.Mutex
	cleanups  []func() error
	closeOnce sync.Once
	closeErr  error
}

// Open starts (or attaches to) a browser, installs the interceptor and
// navigates to the site. Whatever was set up is torn down again when any
// step fails.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	o := options{navigate: true, startURL: cfg.BaseURL}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{id: uuid.NewString(), cfg: cfg, testName: o.testName}
	if err := s.open(ctx, o); err != nil {
		if cerr := s.Close(); cerr != nil {
			slog.Debug("session cleanup after failed open", "error", cerr)
		}
		return nil, err
	}
	slog.Info("session opened",
		"session", s.id,
		"test", s.testName,
		"mode", s.interceptor.Mode(),
		"browser", cfg.BrowserMode,
	)
	return s, nil
}

func (s *Session) open(ctx context.Context, o options) error {
	cfg := s.cfg

	keywords, err := config.LoadKeywords(cfg.KeywordsFile)
	if err != nil {
		return err
	}
	classifier, err := verdict.NewClassifier(keywords)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	allocCtx, err := s.allocator()
	if err != nil {
		return err
	}

	tab, cancelTab := chromedp.NewContext(allocCtx)
	s.addCleanup(func() error {
		cancelTab()
		return nil
	})
	if err := chromedp.Run(tab); err != nil {
		return fmt.Errorf("session: start tab: %w", err)
	}

	chromedp.ListenTarget(tab, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			s.dialogs.Add(1)
			go func() {
				if err := chromedp.Run(tab, page.HandleJavaScriptDialog(false)); err != nil {
					slog.Debug("session dialog dismiss failed", "error", err)
				}
			}()
		}
	})

	s.journal = storage.NewJSONLWriter(cfg.ArtifactsDir, "captures", s.testName, cfg.JournalBufferSize, cfg.JournalMaxSizeMB)
	s.addCleanup(s.journal.Close)
	sinks := []capture.Sink{capture.NewJournal(s.journal, s.id, s.testName, cfg.JournalBodyBytes)}
	if o.broker != nil {
		sinks = append(sinks, relay.NewCaptureSink(o.broker, s.id, s.testName))
	}
	s.buf = capture.NewBuffer(sinks...)

	mode := intercept.ModeIntercept
	if cfg.RunProdReal {
		mode = intercept.ModePassThrough
	}
	s.interceptor, err = intercept.New(s.buf, cfg.APIPattern, mode)
	if err != nil {
		return err
	}
	if err := s.interceptor.Install(tab); err != nil {
		return err
	}
	s.addCleanup(func() error { return s.interceptor.Uninstall(tab) })

	s.page = cdpcontrol.NewPage(tab, cdpcontrol.Options{
		NavTimeout:  cfg.NavTimeout(),
		NavAttempts: cfg.NavAttempts,
		NavBackoff:  cfg.NavBackoff(),
	})
	s.resolver = resolve.New(s.page, s.buf, classifier, resolve.Options{
		PollInterval: cfg.PollInterval(),
		Timeout:      cfg.SubmitTimeout(),
	})

	s.store, err = artifacts.NewStore(filepath.Join(cfg.ArtifactsDir, "diagnostics"))
	if err != nil {
		return err
	}

	if o.navigate {
		if err := s.page.NavigateWithRetry(ctx, o.startURL); err != nil {
			return err
		}
	}
	return nil
}

// allocator returns the allocator context for the configured browser mode.
func (s *Session) allocator() (context.Context, error) {
	cfg := s.cfg
	if cfg.BrowserMode == config.BrowserRemote {
		if cfg.LaunchBrowser {
			l := browser.NewLauncher(browser.Config{
				CDPAddress: cfg.CDPAddress,
				CDPPort:    cfg.CDPPort,
				ProfileDir: cfg.BrowserProfile,
				Headless:   cfg.Headless,
			})
			if err := l.Launch(context.Background()); err != nil {
				return nil, fmt.Errorf("session: launch browser: %w", err)
			}
			s.addCleanup(func() error {
				l.Stop()
				return nil
			})
		}
		allocCtx, cancel := chromedp.NewRemoteAllocator(context.Background(), cfg.GetCDPURL())
		s.addCleanup(func() error {
			cancel()
			return nil
		})
		return allocCtx, nil
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.WindowSize(1366, 900),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	s.addCleanup(func() error {
		cancel()
		return nil
	})
	return allocCtx, nil
}

func (s *Session) addCleanup(fn func() error) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

// Close runs every cleanup in reverse order. It is safe to call twice.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cleanupMu.Lock()
		cleanups := s.cleanups
		s.cleanups = nil
		s.cleanupMu.Unlock()

		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
		slog.Debug("session closed", "session", s.id, "errors", len(errs))
	})
	return s.closeErr
}

func (s *Session) ID() string { return s.id }
func (s *Session) Config() *config.Config { return s.cfg }
func (s *Session) Page() *cdpcontrol.Page { return s.page }
func (s *Session) Buffer() *capture.Buffer { return s.buf }
func (s *Session) Resolver() *resolve.Resolver { return s.resolver }
func (s *Session) Store() *artifacts.Store { return s.store }
func (s *Session) Intercepting() bool { return s.interceptor.Mode() == intercept.ModeIntercept }
func (s *Session) DialogCount() int { return int(s.dialogs.Load()) }
func (s *Session) ServerErrors() []intercept.ServerError { return s.interceptor.ServerErrors() }
func (s *Session) ServerErrorCount() int { return len(s.ServerErrors()) }

// Consultation returns a driver for the consultation form on this tab.
func (s *Session) Consultation() *forms.ConsultationForm {
	return forms.NewConsultationForm(s.page, s.resolver, s.cfg.ContactsURL)
}

// Newsletter returns a driver for the newsletter field on this tab.
func (s *Session) Newsletter() *forms.Newsletter {
	return forms.NewNewsletter(s.page, s.resolver)
}

// CollectDiagnostics stores a screenshot, the page HTML and every request
// captured during the session under name. Each piece is best effort; a piece that cannot be
// read is left out.
func (s *Session) CollectDiagnostics(ctx context.Context, name string) (artifacts.Meta, error) {
	if s.store == nil {
		return artifacts.Meta{}, errors.New("session: no artifact store")
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	files := make(map[string][]byte)
	var location string
	if s.page != nil {
		if u, err := s.page.URL(ctx); err == nil {
			location = u
		} else {
			slog.Debug("diagnostics location failed", "test", name, "error", err)
		}
		if png, err := s.page.Screenshot(ctx); err == nil {
			files["screenshot.png"] = png
		} else {
			slog.Debug("diagnostics screenshot failed", "test", name, "error", err)
		}
		if html, err := s.page.HTML(ctx); err == nil {
			files["page.html"] = []byte(html)
		} else {
			slog.Debug("diagnostics html failed", "test", name, "error", err)
		}
	}
	if s.buf != nil {
		if data, err := json.MarshalIndent(s.buf.History(), "", "  "); err == nil {
			files["captures.json"] = data
		}
	}
	if s.interceptor != nil {
		if errs := s.interceptor.ServerErrors(); len(errs) > 0 {
			if data, err := json.MarshalIndent(errs, "", "  "); err == nil {
				files["server-errors.json"] = data
			}
		}
	}

	notes := fmt.Sprintf("session=%s dialogs=%d", s.id, s.DialogCount())
	if location != "" {
		notes += " url=" + location
	}
	if s.journal != nil {
		notes += " journal=" + s.journal.Path()
	}
	meta, err := s.store.Save(artifacts.Meta{Test: name, Notes: notes}, files)
	if err != nil {
		slog.Warn("diagnostics not saved", "test", name, "error", err)
		return artifacts.Meta{}, err
	}
	slog.Info("diagnostics saved", "test", name, "id", meta.ID, "files", meta.Files)
	return meta, nil
}
