// SPDX-License-Identifier: MPL-2.0

// Package distro is the read-only catalog of Linux distributions postroj
// knows how to boot.
package distro

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	FamilyDebian Family = "debian"
	FamilyUbuntu Family = "ubuntu"
	FamilyCentOS Family = "centos"

	// ImageKindOCI images are pulled from a container registry.
	ImageKindOCI ImageKind = "oci"
	// ImageKindTarball images are downloaded as a root filesystem archive.
	ImageKindTarball ImageKind = "tarball"
	// ImageKindUnknown is reported for any other reference.
	ImageKindUnknown ImageKind = "unknown"

	machinePrefix = "postroj-"
)

// ErrInvalidImageReference is the sentinel error wrapped by InvalidImageReferenceError.
var ErrInvalidImageReference = errors.New("invalid image reference")

type (
	// Family is an operating system family.
	Family string

	// ImageKind classifies Distribution.Image by its scheme.
	ImageKind string

	// Distribution is one catalog entry.
	Distribution struct {
		Family  Family `json:"family"`
		Name    string `json:"name"`
		Release string `json:"release"`
		Image   string `json:"image"`
	}

	// InvalidImageReferenceError is returned by Lookup for unknown names.
	InvalidImageReferenceError struct {
		Value string
	}
)

var catalog = []Distribution{
	{
		Family:  FamilyDebian,
		Name:    "buster",
		Release: "10",
		Image:   "docker://docker.io/debian:buster-slim",
	},
	{
		Family:  FamilyDebian,
		Name:    "bullseye",
		Release: "11",
		Image:   "docker://docker.io/debian:bullseye-slim",
	},
	{
		Family:  FamilyUbuntu,
		Name:    "focal",
		Release: "20",
		Image:   "https://cloud-images.ubuntu.com/minimal/daily/focal/current/focal-minimal-cloudimg-amd64-root.tar.xz",
	},
	{
		Family:  FamilyUbuntu,
		Name:    "jammy",
		Release: "22",
		Image:   "https://cloud-images.ubuntu.com/minimal/daily/jammy/current/jammy-minimal-cloudimg-amd64-root.tar.xz",
	},
	{
		Family:  FamilyCentOS,
		Name:    "7",
		Release: "7",
		Image:   "docker://docker.io/centos:7",
	},
}

// String returns the family name.
func (f Family) String() string { return string(f) }

// FullName returns "<family>-<name>", e.g. "debian-bullseye".
func (d Distribution) FullName() string {
	return d.Family.String() + "-" + d.Name
}

// MachineName returns the default systemd machine name for d.
func (d Distribution) MachineName() string {
	return machinePrefix + d.FullName()
}

// ImageKind classifies the image reference.
func (d Distribution) ImageKind() ImageKind {
	switch {
	case strings.HasPrefix(d.Image, "docker://"):
		return ImageKindOCI
	case strings.HasPrefix(d.Image, "https://"), strings.HasPrefix(d.Image, "http://"):
		return ImageKindTarball
	default:
		return ImageKindUnknown
	}
}

// All returns a copy of the catalog in a stable order.
func All() []Distribution {
	return slices.Clone(catalog)
}

// Names returns every full name in catalog order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, d := range catalog {
		names[i] = d.FullName()
	}
	return names
}

// Lookup finds a distribution by full name. Matching ignores case and
// surrounding whitespace.
func Lookup(fullname string) (Distribution, error) {
	want := strings.ToLower(strings.TrimSpace(fullname))
	for _, d := range catalog {
		if d.FullName() == want {
			return d, nil
		}
	}
	return Distribution{}, &InvalidImageReferenceError{Value: fullname}
}

// Error implements the error interface.
func (e *InvalidImageReferenceError) Error() string {
	return fmt.Sprintf("invalid image reference %q (known: %s)", e.Value, strings.Join(Names(), ", "))
}

// Unwrap returns ErrInvalidImageReference for errors.Is() compatibility.
func (e *InvalidImageReferenceError) Unwrap() error { return ErrInvalidImageReference }
