// SPDX-License-Identifier: MPL-2.0

// Package issue defines the error taxonomy shared by every depload component and the
// user-facing presentation of those errors.
//
// The five failure kinds (configuration, resolver unavailable, resolution, download,
// injection) are typed errors that carry the canonical string of the coordinate being
// processed. Each unwraps to both its kind sentinel and its cause, so callers can use
// errors.Is against either. ActionableError and the rendered issue catalog turn those
// errors into CLI output with remediation hints.
package issue
