// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors for the postroj CLI.
//
// ActionableError carries the operation, the resource, suggestions and the
// external tool's output. The Issue catalog holds Markdown troubleshooting
// pages, rendered with glamour, for the failures operators hit most.
package issue
