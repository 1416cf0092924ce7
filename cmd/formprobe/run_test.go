package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgnsrekt/formprobe/internal/config"
	"github.com/dgnsrekt/formprobe/internal/scenario"
)

func TestSuitesCoverEveryCaseOnce(t *testing.T) {
	var ids []string
	for _, st := range selectSuites("all", &config.Config{Seed: 1}) {
		for _, sp := range st.steps {
			if sp.run == nil {
				t.Fatalf("%s has no run func", sp.id)
			}
			ids = append(ids, sp.id)
		}
	}
	want := make([]string, 0, 43)
	for i := 0; i <= 24; i++ {
		want = append(want, fmt.Sprintf("TC-%d", i))
	}
	want = append(want, scenario.ConsultationXSSID)
	for i := 25; i <= 41; i++ {
		want = append(want, fmt.Sprintf("TC-%d", i))
	}
	if len(ids) != len(want) {
		t.Fatalf("got %d steps, want %d: %v", len(ids), len(want), ids)
	}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("step %d is %s, want %s", i, id, want[i])
		}
	}
}

func TestSelectSuites(t *testing.T) {
	c := &config.Config{}
	if got := selectSuites("newsletter", c); len(got) != 1 || got[0].name != "newsletter" {
		t.Fatalf("newsletter = %+v", got)
	}
	for _, sp := range selectSuites("newsletter", c)[0].steps {
		if sp.form {
			t.Fatalf("%s must not open the consultation form", sp.id)
		}
	}
	for _, sp := range selectSuites("consultation", c)[0].steps {
		if !sp.form {
			t.Fatalf("%s must open the consultation form", sp.id)
		}
	}
}

func TestPrintLine(t *testing.T) {
	tests := []struct {
		name     string
		mark     string
		res      scenario.Result
		err      error
		artifact string
		want     string
	}{
		{
			name: "pass",
			mark: "PASS",
			res:  scenario.Result{Case: scenario.Case{ID: "TC-5", Label: "two letter name"}, Status: scenario.Passed},
			want: "PASS TC-5   two letter name\n",
		},
		{
			name:     "fail with artifact",
			mark:     "FAIL",
			res:      scenario.Result{Case: scenario.Case{ID: "TC-9", Label: "dot"}, Problem: "x"},
			err:      errors.New("[TC-9] dot: x"),
			artifact: "abc",
			want:     "FAIL TC-9   [TC-9] dot: x [artifact abc]\n",
		},
		{
			name: "recorded status differs",
			mark: "PASS",
			res: scenario.Result{
				Case:   scenario.Case{ID: "TC-10", Label: "double dot", RecordedStatus: scenario.Failed},
				Status: scenario.Passed,
			},
			want: "PASS TC-10  double dot (table says failed)\n",
		},
		{
			name: "skipped",
			mark: "SKIP",
			res:  scenario.Result{Case: scenario.Case{ID: "TC-25", Label: "layout"}, Skipped: "no button"},
			want: "SKIP TC-25  layout: no button\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printLine(&buf, tt.mark, tt.res, tt.err, tt.artifact)
			if buf.String() != tt.want {
				t.Fatalf("printLine() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestSetupLoggerCreatesLogDir(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := filepath.Join(t.TempDir(), "nested")
	if err := setupLogger("debug", filepath.Join(dir, "formprobe.log")); err != nil {
		t.Fatalf("setupLogger() = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("log dir not created: %v", err)
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug level not applied")
	}
}
