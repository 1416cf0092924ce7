package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/formprobe/internal/api"
	"github.com/dgnsrekt/formprobe/internal/config"
	"github.com/dgnsrekt/formprobe/internal/forms"
	"github.com/dgnsrekt/formprobe/internal/netutil"
	"github.com/dgnsrekt/formprobe/internal/notify"
	"github.com/dgnsrekt/formprobe/internal/relay"
	"github.com/dgnsrekt/formprobe/internal/scenario"
	"github.com/dgnsrekt/formprobe/internal/session"
)

var (
	runOnly     string
	runJSON     bool
	runFailFast bool
	runTimeout  time.Duration
	runListen   string

	// liveFeed is set while run --listen is serving.
	liveFeed *relay.Broker
)

var runCmd = &cobra.Command{
	Use:       "run [consultation|newsletter|all]",
	Short:     "Run the form checks, one browser session per case",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"consultation", "newsletter", "all"},
	RunE:      runSuites,
}

func init() {
	runCmd.Flags().StringVar(&runOnly, "case", "", "Run only the case with this id (e.g. TC-9)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print one JSON object per case instead of text")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop after the first failing case")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 2*time.Minute, "Per-case timeout")
	runCmd.Flags().StringVar(&runListen, "listen", "", "Serve artifacts and a live event stream on this address while running")
	rootCmd.AddCommand(runCmd)
}

// step is one case bound to the driver calls that play it. Steps with form
// set get the consultation form opened first.
type step struct {
	id   string
	form bool
	run  func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result
}

type suite struct {
	name  string
	steps []step
}

func consultationSuite(c *config.Config) suite {
	steps := []step{
		{id: "TC-0", form: true, run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunHappyPath(ctx, scenario.ValidData(c.Seed))
		}},
		{id: "TC-1", form: true, run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunElementPresence(ctx, s.Consultation())
		}},
		{id: "TC-2", form: true, run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunMessageGrows(ctx, s.Consultation())
		}},
	}
	steps = append(steps, outcomeSteps(scenario.NameCases, scenario.BaseFields())...)
	steps = append(steps, outcomeSteps(scenario.ConsultationEmailCases, scenario.EmailBaseFields())...)
	for _, tc := range scenario.PhoneCases {
		steps = append(steps, step{id: tc.ID, form: true, run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunPhoneCase(ctx, tc, scenario.PhoneBaseFields())
		}})
	}
	steps = append(steps, outcomeSteps(scenario.MessageLengthCases, scenario.BaseFields())...)
	steps = append(steps,
		step{id: "TC-24", form: true, run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunEmptyForm(ctx)
		}},
		step{id: scenario.ConsultationXSSID, form: true, run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunConsultationXSS(ctx, s)
		}},
	)
	return suite{name: "consultation", steps: steps}
}

func outcomeSteps(cases []scenario.Case, base forms.Fields) []step {
	steps := make([]step, 0, len(cases))
	for _, tc := range cases {
		steps = append(steps, step{id: tc.ID, form: true, run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunOutcomeCase(ctx, tc, base)
		}})
	}
	return steps
}

func newsletterSuite() suite {
	steps := []step{
		{id: "TC-25", run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunNewsletterLayout(ctx, s.Newsletter())
		}},
	}
	for _, tc := range scenario.NewsletterValidCases {
		steps = append(steps, step{id: tc.ID, run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunNewsletterValid(ctx, tc)
		}})
	}
	for _, tc := range scenario.NewsletterInvalidCases {
		steps = append(steps, step{id: tc.ID, run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunNewsletterInvalid(ctx, tc)
		}})
	}
	steps = append(steps,
		step{id: "TC-40", run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunNewsletterXSS(ctx, s)
		}},
		step{id: "TC-41", run: func(ctx context.Context, s *session.Session, r *scenario.Runner) scenario.Result {
			return r.RunNewsletterKeyboard(ctx, s.Newsletter())
		}},
	)
	return suite{name: "newsletter", steps: steps}
}

func selectSuites(name string, c *config.Config) []suite {
	switch name {
	case "consultation":
		return []suite{consultationSuite(c)}
	case "newsletter":
		return []suite{newsletterSuite()}
	default:
		return []suite{consultationSuite(c), newsletterSuite()}
	}
}

func runSuites(cmd *cobra.Command, args []string) error {
	name := "all"
	if len(args) == 1 {
		name = args[0]
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runListen != "" {
		ln, err := netutil.Listen(runListen, nil, false)
		if err != nil {
			return err
		}
		liveFeed = relay.NewBroker()
		srv, _, err := startArtifactServer(ln, api.WithLiveFeed(liveFeed))
		if err != nil {
			return err
		}
		defer func() {
			_ = shutdownServer(srv)
			liveFeed = nil
		}()
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, st := range selectSuites(name, cfg) {
		summary := runSuite(ctx, out, st)
		failed += summary.Failed
		if cfg.NotifyURL != "" {
			client := &http.Client{Timeout: 10 * time.Second}
			if err := notify.SendSummary(ctx, client, cfg.NotifyURL, summary); err != nil {
				slog.Warn("run summary not sent", "suite", st.name, "error", err)
			}
		}
		if ctx.Err() != nil || (runFailFast && failed > 0) {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d case(s) failed", failed)
	}
	return nil
}

// report is the JSON form of one case.
type report struct {
	Suite    string          `json:"suite"`
	Mark     string          `json:"mark"`
	Result   scenario.Result `json:"result"`
	Error    string          `json:"error,omitempty"`
	Artifact string          `json:"artifact,omitempty"`
}

func runSuite(ctx context.Context, out io.Writer, st suite) notify.Summary {
	summary := notify.Summary{Suite: st.name}
	enc := json.NewEncoder(out)
	for _, sp := range st.steps {
		if runOnly != "" && sp.id != runOnly {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		res, artifact := runStep(ctx, sp)
		err := scenario.Check(res)

		mark := "PASS"
		switch {
		case err != nil:
			mark = "FAIL"
			summary.Failed++
			summary.Failures = append(summary.Failures, err.Error())
		case res.Ambiguous:
			mark = "WARN"
			summary.Ambiguous++
		case res.Skipped != "":
			mark = "SKIP"
		default:
			summary.Passed++
		}

		rep := report{Suite: st.name, Mark: mark, Result: res, Artifact: artifact}
		if err != nil {
			rep.Error = err.Error()
		}
		if liveFeed != nil {
			if pubErr := liveFeed.PublishJSON(relay.FeedResult, rep); pubErr != nil {
				slog.Debug("run result not published", "case", sp.id, "error", pubErr)
			}
		}
		if runJSON {
			if encErr := enc.Encode(rep); encErr != nil {
				slog.Warn("run report not written", "case", sp.id, "error", encErr)
			}
		} else {
			printLine(out, mark, res, err, artifact)
		}
		if runFailFast && summary.Failed > 0 {
			break
		}
	}
	if !runJSON {
		fmt.Fprintf(out, "%s: %d passed, %d failed, %d ambiguous\n", st.name, summary.Passed, summary.Failed, summary.Ambiguous)
	}
	return summary
}

func printLine(out io.Writer, mark string, res scenario.Result, err error, artifact string) {
	detail := res.Case.Label
	switch {
	case err != nil:
		detail = err.Error()
	case res.Problem != "":
		detail += ": " + res.Problem
	case res.Skipped != "":
		detail += ": " + res.Skipped
	}
	if rec := res.Case.RecordedStatus; rec != "" && res.Status != "" && rec != res.Status {
		detail += fmt.Sprintf(" (table says %s)", rec)
	}
	if artifact != "" {
		detail += " [artifact " + artifact + "]"
	}
	fmt.Fprintf(out, "%-4s %-6s %s\n", mark, res.Case.ID, detail)
}

// runStep plays one case in its own session and stores diagnostics when it
// fails.
func runStep(ctx context.Context, sp step) (scenario.Result, string) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	opts := []session.Option{session.WithTestName(sp.id)}
	if liveFeed != nil {
		opts = append(opts, session.WithLiveFeed(liveFeed))
	}
	s, err := session.Open(ctx, cfg, opts...)
	if err != nil {
		return scenario.Result{Case: scenario.Case{ID: sp.id}, Err: err}, ""
	}
	defer func() {
		if err := s.Close(); err != nil {
			slog.Debug("session close failed", "case", sp.id, "error", err)
		}
	}()

	var res scenario.Result
	form := s.Consultation()
	if sp.form {
		if err := form.Open(ctx); err != nil {
			res = scenario.Result{Case: scenario.Case{ID: sp.id}, Err: err}
		}
	}
	if res.Err == nil {
		res = sp.run(ctx, s, scenario.NewRunner(form, s.Newsletter(), s.Resolver()))
	}

	if res.Err == nil && (res.Problem == "" || res.Ambiguous) {
		return res, ""
	}
	meta, err := s.CollectDiagnostics(context.WithoutCancel(ctx), sp.id)
	if err != nil {
		return res, ""
	}
	return res, meta.ID
}
