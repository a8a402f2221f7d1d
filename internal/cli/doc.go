// Package cli parses command-line arguments and environment variables,
// validates them, and maps failures to process exit codes. It translates
// the command surface into the application's internal configuration.
package cli
