package browser

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// fakeCDP serves /json/version and answers Browser.getVersion after one
// unrelated event.
func fakeCDP(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/devtools/browser/test"
		_ = json.NewEncoder(w).Encode(map[string]string{
			"Browser":              "Chrome/140.0.0.0",
			"Protocol-Version":     "1.3",
			"webSocketDebuggerUrl": wsURL,
		})
	})
	mux.HandleFunc("/devtools/browser/test", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		defer conn.Close()
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
		}
		if json.Unmarshal(data, &req) != nil || req.Method != "Browser.getVersion" {
			return
		}
		_ = wsutil.WriteServerText(conn, []byte(`{"method":"Target.targetCreated","params":{}}`))
		resp, _ := json.Marshal(map[string]any{
			"id": req.ID,
			"result": map[string]string{
				"protocolVersion": "1.3",
				"product":         "HeadlessChrome/140.0.0.0",
				"revision":        "@abc",
				"userAgent":       "Mozilla/5.0 HeadlessChrome",
				"jsVersion":       "14.0",
			},
		})
		_ = wsutil.WriteServerText(conn, resp)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe(t *testing.T) {
	srv := fakeCDP(t)

	v, err := Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe() failed: %v", err)
	}
	if v.Product != "HeadlessChrome/140.0.0.0" || v.ProtocolVersion != "1.3" {
		t.Fatalf("Probe() = %+v", v)
	}
	if v.Browser != "Chrome/140.0.0.0" {
		t.Fatalf("Browser = %q", v.Browser)
	}
	if !strings.HasSuffix(v.WebSocketURL, "/devtools/browser/test") {
		t.Fatalf("WebSocketURL = %q", v.WebSocketURL)
	}
}

func TestProbeRejectsMissingWebSocketURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Browser":"x"}`))
	}))
	defer srv.Close()

	if _, err := Probe(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "webSocketDebuggerUrl") {
		t.Fatalf("Probe() = %v, want webSocketDebuggerUrl error", err)
	}
}

func TestLaunchSkipsWhenPortInUse(t *testing.T) {
	srv := fakeCDP(t)
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	l := NewLauncher(Config{CDPAddress: host, CDPPort: port, ProfileDir: t.TempDir(), Binary: "/nonexistent/chrome"})
	if err := l.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() = %v, want skip", err)
	}
	if l.Running() {
		t.Fatal("launcher must not own an already running browser")
	}
	l.Stop()
}

func TestLaunchFailsForMissingBinary(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	profile := t.TempDir()
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: port, ProfileDir: profile, Binary: "/nonexistent/chrome"})
	if err := l.Launch(context.Background()); err == nil || !strings.Contains(err.Error(), "start browser") {
		t.Fatalf("Launch() = %v, want start error", err)
	}
	if l.Running() {
		t.Fatal("launcher must not report a failed start as running")
	}
	if _, err := os.Stat(filepath.Join(profile, "browser.log")); err != nil {
		t.Fatalf("browser log not created: %v", err)
	}
}

func TestWaitForCDP(t *testing.T) {
	srv := fakeCDP(t)
	host, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)

	l := NewLauncher(Config{CDPAddress: host, CDPPort: port, ReadyTimeout: 2 * time.Second})
	if err := l.waitForCDP(context.Background()); err != nil {
		t.Fatalf("waitForCDP() = %v", err)
	}
}

func TestArgs(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9222, ProfileDir: "/tmp/p", Headless: true})
	args := strings.Join(l.args(), " ")
	for _, want := range []string{"--remote-debugging-port=9222", "--user-data-dir=/tmp/p", "--headless=new", "--window-size=1366,900"} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
	if l.HTTPBase() != "http://127.0.0.1:9222" {
		t.Fatalf("HTTPBase() = %q", l.HTTPBase())
	}
}
