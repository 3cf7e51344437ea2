// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/depload/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/depload/config.cue on macOS, %APPDATA%\depload\config.cue
// on Windows), then from ./config.cue. DEPLOAD_* environment variables override scalar
// settings, e.g. DEPLOAD_SOLVER_MODE or DEPLOAD_FETCH_PARALLELISM.
//
// Files are validated against an embedded CUE schema (config_schema.cue). Dependency
// manifests, which a host ships to name what it needs at start, use their own schema
// (manifest_schema.cue) and must be fully concrete.
package config
