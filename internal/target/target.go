// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind names for the three execution contexts.
const (
	KindHost      Kind = "host"
	KindRootfs    Kind = "rootfs"
	KindContainer Kind = "container"
)

var (
	// ErrInvalidMachineName is the sentinel error wrapped by InvalidMachineNameError.
	ErrInvalidMachineName = errors.New("invalid machine name")

	// ErrInvalidRootfsDirectory is the sentinel error wrapped by InvalidRootfsDirectoryError.
	ErrInvalidRootfsDirectory = errors.New("invalid rootfs directory")
)

type (
	// Kind identifies an execution context in logs and metrics.
	Kind string

	// MachineName is the systemd machine name of a booted container.
	MachineName string

	// RootfsDirectory is the host path of an unpacked root filesystem.
	RootfsDirectory string

	// InvalidMachineNameError is returned when a MachineName cannot be
	// passed to systemd-run or machinectl.
	InvalidMachineNameError struct {
		Value MachineName
	}

	// InvalidRootfsDirectoryError is returned when a RootfsDirectory is empty.
	InvalidRootfsDirectoryError struct {
		Value RootfsDirectory
	}

	// Target is an execution context. The set of implementations is closed:
	// Host, Rootfs and Container.
	Target interface {
		Kind() Kind
		// Describe returns the context for log lines, e.g. "rootfs at /srv/img".
		Describe() string
		Validate() error
		// wrap rewrites argv so it runs in this context.
		wrap(tc Toolchain, argv []string) []string
	}

	// Host runs the command directly on the host system.
	Host struct{}

	// Rootfs runs the command inside an unbooted root filesystem.
	Rootfs struct {
		Directory RootfsDirectory
	}

	// Container runs the command on a booted machine. With PTY set the
	// command gets a pseudo-terminal inside the machine and the local side
	// is run on a PTY as well.
	Container struct {
		Machine MachineName
		PTY     bool
	}
)

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// String returns the machine name.
func (m MachineName) String() string { return string(m) }

// Validate rejects empty names and names that would be parsed as flags or
// contain whitespace.
func (m MachineName) Validate() error {
	s := string(m)
	if strings.TrimSpace(s) == "" || strings.HasPrefix(s, "-") || strings.ContainsAny(s, " \t\n/") {
		return &InvalidMachineNameError{Value: m}
	}
	return nil
}

// String returns the directory path.
func (d RootfsDirectory) String() string { return string(d) }

// Validate rejects empty directories.
func (d RootfsDirectory) Validate() error {
	if strings.TrimSpace(string(d)) == "" {
		return &InvalidRootfsDirectoryError{Value: d}
	}
	return nil
}

// Clean returns the directory with filepath.Clean applied.
func (d RootfsDirectory) Clean() RootfsDirectory {
	return RootfsDirectory(filepath.Clean(string(d)))
}

// Error implements the error interface.
func (e *InvalidMachineNameError) Error() string {
	return fmt.Sprintf("invalid machine name %q: must be non-empty, must not start with '-' or contain whitespace or '/'", e.Value)
}

// Unwrap returns ErrInvalidMachineName for errors.Is() compatibility.
func (e *InvalidMachineNameError) Unwrap() error { return ErrInvalidMachineName }

// Error implements the error interface.
func (e *InvalidRootfsDirectoryError) Error() string {
	return fmt.Sprintf("invalid rootfs directory %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidRootfsDirectory for errors.Is() compatibility.
func (e *InvalidRootfsDirectoryError) Unwrap() error { return ErrInvalidRootfsDirectory }

// Kind implements Target.
func (Host) Kind() Kind { return KindHost }

// Describe implements Target.
func (Host) Describe() string { return "host system" }

// Validate implements Target.
func (Host) Validate() error { return nil }

func (Host) wrap(_ Toolchain, argv []string) []string {
	return HostArgs(argv)
}

// Kind implements Target.
func (Rootfs) Kind() Kind { return KindRootfs }

// Describe implements Target.
func (r Rootfs) Describe() string { return "rootfs at " + r.Directory.String() }

// Validate implements Target.
func (r Rootfs) Validate() error { return r.Directory.Validate() }

func (r Rootfs) wrap(tc Toolchain, argv []string) []string {
	return tc.RootfsArgs(r.Directory, argv)
}

// Kind implements Target.
func (Container) Kind() Kind { return KindContainer }

// Describe implements Target.
func (c Container) Describe() string { return "container machine " + c.Machine.String() }

// Validate implements Target.
func (c Container) Validate() error { return c.Machine.Validate() }

func (c Container) wrap(tc Toolchain, argv []string) []string {
	return tc.ContainerArgs(c.Machine, c.PTY, argv)
}
