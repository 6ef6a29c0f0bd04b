// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/postroj/postroj/internal/harness"
	"github.com/postroj/postroj/internal/readiness"
)

func newWaitPortCommand(app *App) *cobra.Command {
	var (
		host     string
		timeout  time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait-port <port>",
		Short: "Wait until a TCP port accepts connections",
		Long: `Wait until a TCP port accepts connections.

Host, timeout and interval default to the readiness section of the
configuration. The exit status is 1 when the port did not come up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			port, err := strconv.Atoi(args[0])
			if err != nil || port <= 0 || port > 65535 {
				return fmt.Errorf("invalid port %q: must be between 1 and 65535", args[0])
			}

			s, err := app.newSession(ctx)
			if err != nil {
				return app.fail(cmd, err, "load configuration", app.flags.configPath)
			}
			if host == "" {
				host = s.cfg.Readiness.Host
			}
			if timeout <= 0 {
				timeout = s.cfg.Readiness.Timeout
			}
			if interval <= 0 {
				interval = s.cfg.Readiness.Interval
			}

			poller := readiness.New(
				readiness.WithProgress(app.stderr),
				readiness.WithLogger(s.logger),
				readiness.WithRecorder(app.Metrics),
			)
			if !poller.WaitForPort(ctx, host, port, timeout, interval) {
				err := &harness.PortNotReadyError{Host: host, Port: port, Timeout: timeout}
				return app.fail(cmd, err, "wait for port", strconv.Itoa(port))
			}

			fmt.Fprintf(app.stdout, "%s port %d on %s is up\n", SuccessStyle.Render("✓"), port, host)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to probe (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (default from config)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "delay between probes (default from config)")
	return cmd
}
