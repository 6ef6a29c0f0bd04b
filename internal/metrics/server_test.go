// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewHandler(t *testing.T) {
	t.Parallel()

	c, registry := newTestCollector()
	c.ObserveCommand("rootfs", OutcomeSuccess, time.Millisecond)

	srv := httptest.NewServer(NewHandler(registry))
	defer srv.Close()

	body := get(t, srv.URL+"/metrics")
	if !strings.Contains(body, `postroj_commands_total{outcome="success",target="rootfs"} 1`) {
		t.Errorf("metrics output missing command counter:\n%s", body)
	}

	if got := get(t, srv.URL+"/healthz"); got != "ok\n" {
		t.Errorf("healthz = %q, want %q", got, "ok\n")
	}
}

func TestListen_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	s, err := Listen("127.0.0.1:0", prometheus.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	s.Serve()

	if got := get(t, "http://"+s.Addr()+"/healthz"); got != "ok\n" {
		t.Errorf("healthz = %q", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestListen_InvalidAddress(t *testing.T) {
	t.Parallel()

	if _, err := Listen("256.0.0.1:bad", prometheus.NewRegistry(), nil); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
