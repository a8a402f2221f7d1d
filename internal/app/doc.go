// Package app wires the build declaration, the task modules and the task
// graph into one runnable application, independent of the command line that
// drives it.
package app
