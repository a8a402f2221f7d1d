// Package registry provides the central "glue" for the module system.
//
// Every task module receives the same Registry and registers its tasks into
// the shared task graph, pulling what it needs (the build declaration, the
// build variant, the process orchestrator, the tunnel manager) from the
// registry instead of from global state.
//
// During application startup, the registry is populated and then validated
// so that a task depending on a name no module registered, or a watch rule
// naming an unknown task, is reported before anything runs.
package registry
