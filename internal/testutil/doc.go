// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Besides environment and filesystem helpers it can lay out a small Maven
// repository on disk (MavenRepo), which the CLI tests resolve against
// through file:// URLs.
package testutil
