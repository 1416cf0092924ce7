package main

import (
	"net"
	"net/http"
	"testing"

	"github.com/dgnsrekt/formprobe/internal/config"
)

func TestStartArtifactServer(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{ArtifactsDir: t.TempDir()}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, errCh, err := startArtifactServer(ln)
	if err != nil {
		t.Fatalf("startArtifactServer() = %v", err)
	}

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if err := shutdownServer(srv); err != nil {
		t.Fatalf("shutdownServer() = %v", err)
	}
	if err, ok := <-errCh; ok && err != nil {
		t.Fatalf("serve error = %v", err)
	}
}
