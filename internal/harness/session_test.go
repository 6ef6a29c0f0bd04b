// SPDX-License-Identifier: MPL-2.0

package harness

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/postroj/postroj/internal/readiness"
	"github.com/postroj/postroj/internal/runner"
	"github.com/postroj/postroj/internal/supervisor"
	"github.com/postroj/postroj/internal/target"
	"github.com/postroj/postroj/internal/testutil"
)

const (
	testMachine   target.MachineName     = "postroj-debian-bullseye"
	testDirectory target.RootfsDirectory = "/var/lib/postroj/images/debian-bullseye"
)

type fixture struct {
	session *Session
	// commands records foreground commands; boots records the boot command.
	commands *testutil.ExecRecorder
	boots    *testutil.ExecRecorder
	logs     *testutil.SafeBuffer
}

// newFixture builds a Session whose foreground commands run commandSub and
// whose boot command runs bootSub.
func newFixture(t *testing.T, commandSub, bootSub []string, opts ...Option) *fixture {
	t.Helper()

	commands := testutil.NewExecRecorder(commandSub...)
	boots := testutil.NewExecRecorder(bootSub...)
	logger, logs := testutil.NewLogger()

	r := runner.New(runner.WithExecCommand(commands.Command), runner.WithStdio(nil, io.Discard, io.Discard))
	executor := target.NewExecutor(r, target.WithLogger(logger))

	opts = append([]Option{
		WithLogger(logger),
		WithPoweroffGrace(100 * time.Millisecond),
		WithPoller(readiness.New(readiness.WithProgress(io.Discard))),
		WithSupervisorOptions(supervisor.WithExecCommand(boots.Command)),
	}, opts...)

	s, err := New(testMachine, testDirectory, executor, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.StopBoot(); err != nil {
			t.Errorf("StopBoot() error = %v", err)
		}
	})

	return &fixture{session: s, commands: commands, boots: boots, logs: logs}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	executor := target.NewExecutor(runner.New())

	tests := []struct {
		name      string
		machine   target.MachineName
		directory target.RootfsDirectory
		executor  *target.Executor
		wantErr   error
	}{
		{"bad machine", "-m", testDirectory, executor, target.ErrInvalidMachineName},
		{"empty directory", testMachine, " ", executor, target.ErrInvalidRootfsDirectory},
		{"nil executor", testMachine, testDirectory, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.machine, tt.directory, tt.executor)
			if err == nil {
				t.Fatal("New() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSession_RunTargets(t *testing.T) {
	t.Parallel()
	testutil.RequireExecutable(t, "true", "sleep")

	f := newFixture(t, nil, []string{"sleep", "30"})
	ctx := context.Background()
	cmd := runner.NewCommand([]string{"uname", "-a"}, runner.DefaultOptions())

	if _, err := f.session.RunOnHost(ctx, cmd); err != nil {
		t.Fatalf("RunOnHost() error = %v", err)
	}
	if _, err := f.session.RunInRootfs(ctx, cmd); err != nil {
		t.Fatalf("RunInRootfs() error = %v", err)
	}
	if _, err := f.session.RunInContainer(ctx, cmd, false); err != nil {
		t.Fatalf("RunInContainer() error = %v", err)
	}

	want := [][]string{
		{"uname", "-a"},
		{
			"systemd-nspawn", "--directory=" + string(testDirectory),
			"--bind-ro=/etc/resolv.conf:/etc/resolv.conf", "--pipe", "uname", "-a",
		},
		{"systemd-run", "--machine=" + string(testMachine), "--wait", "--quiet", "--pipe", "uname", "-a"},
	}
	got := f.commands.Calls()
	if len(got) != len(want) {
		t.Fatalf("recorded %d commands, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSession_CheckBootBeforeStart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	if err := f.session.CheckBoot(); !errors.Is(err, ErrNotBooted) {
		t.Fatalf("CheckBoot() error = %v, want ErrNotBooted", err)
	}
}

func TestSession_Boot_Success(t *testing.T) {
	t.Parallel()
	testutil.RequireExecutable(t, "true", "sleep")

	f := newFixture(t, nil, []string{"sleep", "30"})
	ctx := context.Background()

	if err := f.session.Boot(ctx, 0); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if f.session.Aborted() {
		t.Error("Aborted() = true after a healthy boot")
	}

	wantBoot := []string{
		"systemd-nspawn", "--directory=" + string(testDirectory),
		"--machine=" + string(testMachine), "--boot",
	}
	if boots := f.boots.Calls(); len(boots) != 1 || !slices.Equal(boots[0], wantBoot) {
		t.Errorf("boot argv = %q, want %q", boots, wantBoot)
	}

	if err := f.session.Teardown(ctx); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	wantPoweroff := []string{"machinectl", "poweroff", string(testMachine)}
	if calls := f.commands.Calls(); len(calls) != 1 || !slices.Equal(calls[0], wantPoweroff) {
		t.Errorf("teardown commands = %q, want %q", calls, wantPoweroff)
	}
}

func TestSession_Boot_Failure(t *testing.T) {
	t.Parallel()
	testutil.RequireExecutable(t, "true", "false")

	f := newFixture(t, nil, []string{"false"}, WithCheckTimeout(5*time.Second))
	ctx := context.Background()

	start := time.Now()
	err := f.session.Boot(ctx, 8080)
	if err == nil {
		t.Fatal("Boot() error = nil, want boot failure")
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Boot() took %v, expected the failure well before the check timeout", elapsed)
	}
	if !errors.Is(err, supervisor.ErrSupervisedProcessFailed) {
		t.Errorf("errors.Is(err, ErrSupervisedProcessFailed) = false: %v", err)
	}
	if !errors.Is(err, runner.ErrCommandFailed) {
		t.Errorf("errors.Is(err, runner.ErrCommandFailed) = false: %v", err)
	}
	if !strings.Contains(err.Error(), "boot machine "+string(testMachine)) {
		t.Errorf("error = %q, want it to name the machine", err)
	}
	if !f.session.Aborted() {
		t.Fatal("Aborted() = false after a boot failure")
	}

	if err := f.session.Teardown(ctx); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if calls := f.commands.Calls(); len(calls) != 0 {
		t.Errorf("teardown ran %q on an aborted machine", calls)
	}
	if !strings.Contains(f.logs.String(), "leaving machine untouched") {
		t.Errorf("expected a teardown warning in logs, got %q", f.logs.String())
	}
}

func TestSession_Teardown_NeverBooted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	if err := f.session.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if calls := f.commands.Calls(); len(calls) != 0 {
		t.Errorf("Teardown() ran %q before any boot", calls)
	}
}

func TestSession_Teardown_PoweroffFails(t *testing.T) {
	t.Parallel()
	testutil.RequireExecutable(t, "false", "sleep")

	f := newFixture(t, []string{"false"}, []string{"sleep", "30"})
	ctx := context.Background()

	if err := f.session.StartBoot(ctx); err != nil {
		t.Fatalf("StartBoot() error = %v", err)
	}

	err := f.session.Teardown(ctx)
	if err == nil {
		t.Fatal("Teardown() error = nil, want poweroff and terminate failures")
	}
	if !errors.Is(err, runner.ErrCommandFailed) {
		t.Errorf("errors.Is(err, ErrCommandFailed) = false: %v", err)
	}

	calls := f.commands.Calls()
	if len(calls) != 2 || calls[0][1] != "poweroff" || calls[1][1] != "terminate" {
		t.Errorf("teardown commands = %q, want poweroff then terminate", calls)
	}
}

func TestSession_Boot_WaitsForPort(t *testing.T) {
	t.Parallel()
	testutil.RequireExecutable(t, "sleep")

	_, port := testutil.Listen(t)
	f := newFixture(t, nil, []string{"sleep", "30"}, WithReadiness("127.0.0.1", 2*time.Second, 10*time.Millisecond))

	if err := f.session.Boot(context.Background(), port); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
}

func TestSession_Boot_PortNotReady(t *testing.T) {
	t.Parallel()
	testutil.RequireExecutable(t, "sleep")

	port := testutil.FreePort(t)
	f := newFixture(t, nil, []string{"sleep", "30"}, WithReadiness("127.0.0.1", 200*time.Millisecond, 20*time.Millisecond))

	err := f.session.Boot(context.Background(), port)
	if !errors.Is(err, ErrPortNotReady) {
		t.Fatalf("Boot() error = %v, want ErrPortNotReady", err)
	}
	var notReady *PortNotReadyError
	if !errors.As(err, &notReady) || notReady.Port != port || notReady.Machine != testMachine {
		t.Errorf("PortNotReadyError = %+v", notReady)
	}
	if f.session.Aborted() {
		t.Error("Aborted() = true for a readiness timeout")
	}
}

func TestSession_Teardown_WaitsForBootToExit(t *testing.T) {
	t.Parallel()
	testutil.RequireExecutable(t, "sh", "touch")

	// The boot command runs until poweroff creates the flag file.
	flag := filepath.Join(t.TempDir(), "poweroff")
	f := newFixture(t,
		[]string{"touch", flag},
		[]string{"sh", "-c", `while [ ! -e "$0" ]; do sleep 0.05; done`, flag},
		WithPoweroffGrace(5*time.Second),
	)
	ctx := context.Background()

	if err := f.session.Boot(ctx, 0); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	start := time.Now()
	if err := f.session.Teardown(ctx); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Teardown() took %v, want it to return once the boot exits", elapsed)
	}
	if state := f.session.Supervisor().State(); state != supervisor.StateCompleted {
		t.Errorf("boot state after Teardown = %s, want completed", state)
	}
}

func TestSession_Teardown_GraceElapses(t *testing.T) {
	t.Parallel()
	testutil.RequireExecutable(t, "true", "sleep")

	f := newFixture(t, nil, []string{"sleep", "30"})
	ctx := context.Background()

	if err := f.session.Boot(ctx, 0); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if err := f.session.Teardown(ctx); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if state := f.session.Supervisor().State(); state != supervisor.StateRunning {
		t.Errorf("boot state = %s, want running until StopBoot", state)
	}
	if !strings.Contains(f.logs.String(), "still running after poweroff") {
		t.Errorf("expected a grace warning in logs, got %q", f.logs.String())
	}
}

func TestSession_ReleaseBoot(t *testing.T) {
	t.Parallel()
	testutil.RequireExecutable(t, "sleep")

	f := newFixture(t, nil, []string{"sleep", "30"})
	if err := f.session.Boot(context.Background(), 0); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	pid := f.session.Supervisor().PID()
	t.Cleanup(func() {
		if p, err := os.FindProcess(pid); err == nil {
			_ = p.Kill()
		}
	})

	f.session.ReleaseBoot()
	if err := f.session.StopBoot(); err != nil {
		t.Fatalf("StopBoot() error = %v", err)
	}

	select {
	case <-f.session.Supervisor().Done():
		t.Fatal("StopBoot() terminated a released machine")
	case <-time.After(200 * time.Millisecond):
	}
}
