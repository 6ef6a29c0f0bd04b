// SPDX-License-Identifier: MPL-2.0

package target

import "slices"

// Default tool binaries and paths.
const (
	DefaultNspawn     = "systemd-nspawn"
	DefaultSystemdRun = "systemd-run"
	DefaultMachinectl = "machinectl"
	DefaultResolvConf = "/etc/resolv.conf"

	// containerResolvConf is where the resolver file is bound inside the rootfs.
	containerResolvConf = "/etc/resolv.conf"
)

// Toolchain names the external binaries used to reach each context.
type Toolchain struct {
	Nspawn     string
	SystemdRun string
	Machinectl string
	// ResolvConf is the host file bound read-only over the rootfs's
	// /etc/resolv.conf so package managers can resolve names.
	ResolvConf string
}

// DefaultToolchain returns binaries looked up on PATH and the host's
// resolver configuration.
func DefaultToolchain() Toolchain {
	return Toolchain{
		Nspawn:     DefaultNspawn,
		SystemdRun: DefaultSystemdRun,
		Machinectl: DefaultMachinectl,
		ResolvConf: DefaultResolvConf,
	}
}

// withDefaults fills empty fields from DefaultToolchain.
func (tc Toolchain) withDefaults() Toolchain {
	def := DefaultToolchain()
	if tc.Nspawn == "" {
		tc.Nspawn = def.Nspawn
	}
	if tc.SystemdRun == "" {
		tc.SystemdRun = def.SystemdRun
	}
	if tc.Machinectl == "" {
		tc.Machinectl = def.Machinectl
	}
	if tc.ResolvConf == "" {
		tc.ResolvConf = def.ResolvConf
	}
	return tc
}

// HostArgs returns argv unchanged (as a copy).
func HostArgs(argv []string) []string {
	return slices.Clone(argv)
}

// RootfsArgs builds:
//
//	systemd-nspawn --directory=<dir> --bind-ro=<resolv>:/etc/resolv.conf --pipe <argv...>
func (tc Toolchain) RootfsArgs(dir RootfsDirectory, argv []string) []string {
	tc = tc.withDefaults()
	args := make([]string, 0, 4+len(argv))
	args = append(args,
		tc.Nspawn,
		"--directory="+dir.String(),
		"--bind-ro="+tc.ResolvConf+":"+containerResolvConf,
		"--pipe",
	)
	return append(args, argv...)
}

// ContainerArgs builds:
//
//	systemd-run --machine=<id> --wait --quiet --pipe [--pty] <argv...>
func (tc Toolchain) ContainerArgs(machine MachineName, pty bool, argv []string) []string {
	tc = tc.withDefaults()
	args := make([]string, 0, 6+len(argv))
	args = append(args,
		tc.SystemdRun,
		"--machine="+machine.String(),
		"--wait",
		"--quiet",
		"--pipe",
	)
	if pty {
		args = append(args, "--pty")
	}
	return append(args, argv...)
}

// BootArgs builds the long-running boot command:
//
//	systemd-nspawn --directory=<dir> --machine=<id> --boot
func (tc Toolchain) BootArgs(dir RootfsDirectory, machine MachineName) []string {
	tc = tc.withDefaults()
	return []string{
		tc.Nspawn,
		"--directory=" + dir.String(),
		"--machine=" + machine.String(),
		"--boot",
	}
}

// PoweroffArgs builds `machinectl poweroff <id>`.
func (tc Toolchain) PoweroffArgs(machine MachineName) []string {
	tc = tc.withDefaults()
	return []string{tc.Machinectl, "poweroff", machine.String()}
}

// TerminateArgs builds `machinectl terminate <id>`.
func (tc Toolchain) TerminateArgs(machine MachineName) []string {
	tc = tc.withDefaults()
	return []string{tc.Machinectl, "terminate", machine.String()}
}
