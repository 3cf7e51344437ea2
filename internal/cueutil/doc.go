// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE parsing steps shared by the configuration
// file and dependency manifests: compile the embedded schema, unify user data
// with a root definition, then validate and decode into a Go struct.
// Validation errors carry the JSON-style path of the offending field.
package cueutil
