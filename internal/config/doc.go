// Package config defines the format-agnostic model of a build declaration
// and the Loader interface that produces it.
//
// The Model is the single source of truth for the task modules: file sets,
// external commands, output directories and watch rules all come from it.
// Concrete loaders, such as the HCL one, live in separate packages.
package config
