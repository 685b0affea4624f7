// Package recipe runs build.star recipes.
//
// A recipe is a Starlark script that declares its options in the global scope and
// defines a build() function. build() drives an extbuilder.Builder through the
// builtins registered in builtins.go.
package recipe
