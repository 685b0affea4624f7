// Package extbuilder contains the helpers used to build third-party C libraries for
// every supported target: argument normalization, the toolchain environment, a shell
// runner based on mvdan.cc/sh, OS package installation, source fetching, patching
// and packaging.
//
// All operations run sequentially. Every command goes through a Runner which makes
// it possible to record the exact command sequence of a build without running it.
package extbuilder
