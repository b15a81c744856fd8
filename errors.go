package livemark

import (
	"errors"
	"fmt"

	"github.com/livefir/livemark/internal/mdtree"
)

var (
	// ErrNilRenderer is returned by New without a renderer
	ErrNilRenderer = errors.New("livemark: renderer is nil")

	// ErrNilTree is returned by Apply for a nil tree
	ErrNilTree = errors.New("livemark: tree is nil")

	// ErrSuperseded is returned by Update when a newer submission replaced its text
	// or was applied before it
	ErrSuperseded = errors.New("livemark: update superseded")
)

// RenderError reports a block the renderer failed on. The update it
// belongs to is abandoned and the previous view is kept.
type RenderError struct {
	Index int
	Kind  mdtree.Kind
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render block %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
