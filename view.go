package livemark

import (
	"time"

	"github.com/livefir/livemark/internal/diff"
	"github.com/livefir/livemark/internal/mdtree"
	"github.com/livefir/livemark/internal/rendercache"
)

// Block is one rendered top-level block of a view
type Block[A any] struct {
	Index    int         `json:"index"`
	Hash     mdtree.Hash `json:"hash"`
	Kind     mdtree.Kind `json:"kind"`
	Artifact A           `json:"artifact"`
	// Reused is set when the artifact came from the cache
	Reused bool `json:"reused"`
}

// View is the rendered state of a document after one applied tree.
// Views are immutable once returned.
type View[A any] struct {
	Revision    uint64                  `json:"revision"`
	Blocks      []Block[A]              `json:"blocks"`
	Changes     []diff.Change           `json:"changes"`
	Pattern     diff.Pattern            `json:"pattern"`
	Fingerprint rendercache.Fingerprint `json:"fingerprint"`
	Reused      int                     `json:"reused"`
	Rendered    int                     `json:"rendered"`
	// HitRate is the share of blocks reused in this step
	HitRate  float64       `json:"hit_rate"`
	Duration time.Duration `json:"duration"`
}

// Artifacts returns the block artifacts in document order
func (v *View[A]) Artifacts() []A {
	if v == nil {
		return nil
	}
	out := make([]A, len(v.Blocks))
	for i, b := range v.Blocks {
		out[i] = b.Artifact
	}
	return out
}

// Len returns the number of blocks
func (v *View[A]) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Blocks)
}

// Update is one result of Document.Run: a view or the error that
// prevented it
type Update[A any] struct {
	Generation uint64
	View       *View[A]
	Err        error
}
