package pipeline

import (
	"fmt"
	"strings"
)

// StageError reports the stage that aborted a sink.
type StageError struct {
	Sink  string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("sink %q: stage %q: %v", e.Sink, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PathCollisionError is returned when two distinct records of one sink end
// up on the same path.
type PathCollisionError struct {
	Path string
}

func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("two outputs collide on path %q", e.Path)
}

// BuildError reports an invalid pipeline declaration.
type BuildError struct {
	Pipeline string
	Problems []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("pipeline %q: %s", e.Pipeline, strings.Join(e.Problems, "; "))
}
