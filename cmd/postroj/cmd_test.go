// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/postroj/postroj/internal/config"
)

type (
	// stubProvider returns a fixed configuration without touching disk.
	stubProvider struct {
		cfg  *config.Config
		path string
		err  error
	}

	// fakeExec records every argv and runs the substitute mapped to the
	// program name, or "true" when none is mapped.
	fakeExec struct {
		mu          sync.Mutex
		calls       [][]string
		substitutes map[string][]string
	}

	// harnessCLI is an App wired to in-memory streams and fakeExec.
	harnessCLI struct {
		app    *App
		exec   *fakeExec
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	}
)

func (p *stubProvider) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if p.err != nil {
		return nil, p.err
	}
	cfg := *p.cfg
	return &cfg, nil
}

func (p *stubProvider) Path(config.LoadOptions) (string, error) {
	return p.path, nil
}

func (f *fakeExec) command(ctx context.Context, name string, arg ...string) *exec.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, arg...))

	sub, ok := f.substitutes[name]
	if !ok {
		sub = []string{"true"}
	}
	return exec.CommandContext(ctx, sub[0], sub[1:]...)
}

func (f *fakeExec) recorded() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// called reports whether argv was recorded.
func (f *fakeExec) called(argv ...string) bool {
	return slices.ContainsFunc(f.recorded(), func(c []string) bool {
		return slices.Equal(c, argv)
	})
}

func newHarnessCLI(t *testing.T, substitutes map[string][]string) *harnessCLI {
	t.Helper()

	fe := &fakeExec{substitutes: substitutes}
	cfg := config.DefaultConfig()
	cfg.Supervisor.PoweroffGrace = 100 * time.Millisecond

	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{
		Config:      &stubProvider{cfg: cfg},
		Stdin:       bytes.NewReader(nil),
		Stdout:      &stdout,
		Stderr:      &stderr,
		ExecCommand: fe.command,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return &harnessCLI{app: app, exec: fe, stdout: &stdout, stderr: &stderr}
}

// run executes the command tree with args.
func (h *harnessCLI) run(args ...string) error {
	root := NewRootCommand(h.app)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// exitCode returns the ExitError code of err, 0 for nil and -1 for any
// other error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestNewRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	app, err := NewApp(Dependencies{Config: &stubProvider{cfg: config.DefaultConfig()}})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	root := NewRootCommand(app)

	want := []string{"boot", "config", "distros", "exec", "host", "rootfs", "wait-port"}
	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		if !slices.Contains(got, name) {
			t.Errorf("missing subcommand %q in %q", name, got)
		}
	}

	for _, flag := range []string{"config", "log-level", "log-format", "verbose"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}
