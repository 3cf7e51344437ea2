// SPDX-License-Identifier: MPL-2.0

// Package mavensolver computes the transitive runtime closure of a Maven
// artifact by walking POM files across an ordered list of repositories.
//
// The package is the payload of the isolated solver: it is compiled into the
// depsolver executable and also shipped as source to be evaluated inside a
// private interpreter. It therefore depends on the standard library only and
// avoids language features the interpreter does not support (generics, the
// min/max builtins, range over integers).
//
// The single entry point is FindTransitiveDependencies. Its result lists the
// requested root first, followed by every compile and runtime dependency in
// breadth-first (nearest-wins) order, each annotated with the repository it was
// found in.
package mavensolver
