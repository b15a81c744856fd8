// Package diff compares two parses of a document block by block using the
// structural hashes cached on each tree.
package diff

import (
	"sort"
	"time"

	"github.com/livefir/livemark/internal/mdtree"
)

// NoIndex marks the absent side of an Inserted or Removed change
const NoIndex = -1

// ChangeKind classifies one top-level block
type ChangeKind uint8

const (
	Unchanged ChangeKind = iota
	Modified
	Inserted
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Modified:
		return "modified"
	case Inserted:
		return "inserted"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON payloads
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Change describes what happened to one block. Old and New borrow nodes from
// the trees passed to Diff.
type Change struct {
	Kind     ChangeKind  `json:"kind"`
	OldIndex int         `json:"old_index"`
	NewIndex int         `json:"new_index"`
	Old      mdtree.Node `json:"-"`
	New      mdtree.Node `json:"-"`
}

// Diff classifies every block of next against previous. A nil previous is a
// first render: every block is Inserted. Neither tree is modified.
//
// Changes come back ordered by NewIndex; Removed changes follow, in old
// document order.
func Diff(previous, next *mdtree.Tree) []Change {
	if previous == nil {
		changes := make([]Change, next.Len())
		for i := range changes {
			changes[i] = Change{Kind: Inserted, OldIndex: NoIndex, NewIndex: i, New: next.Block(i)}
		}
		return changes
	}

	// each hash maps to the old indices still available for matching
	candidates := make(map[mdtree.Hash][]int, previous.Len())
	for i := 0; i < previous.Len(); i++ {
		h := previous.BlockHash(i)
		candidates[h] = append(candidates[h], i)
	}

	consumed := make([]bool, previous.Len())
	changes := make([]Change, 0, next.Len())

	for j := 0; j < next.Len(); j++ {
		h := next.BlockHash(j)
		queue := candidates[h]
		if len(queue) == 0 {
			changes = append(changes, Change{Kind: Inserted, OldIndex: NoIndex, NewIndex: j, New: next.Block(j)})
			continue
		}

		i := queue[0]
		candidates[h] = queue[1:]
		consumed[i] = true

		kind := Unchanged
		if !mdtree.Equal(previous.Block(i), next.Block(j)) {
			kind = Modified
		}
		changes = append(changes, Change{Kind: kind, OldIndex: i, NewIndex: j, Old: previous.Block(i), New: next.Block(j)})
	}

	for i, used := range consumed {
		if !used {
			changes = append(changes, Change{Kind: Removed, OldIndex: i, NewIndex: NoIndex, Old: previous.Block(i)})
		}
	}

	sort.SliceStable(changes, func(a, b int) bool {
		ca, cb := changes[a], changes[b]
		if (ca.Kind == Removed) != (cb.Kind == Removed) {
			return cb.Kind == Removed
		}
		if ca.Kind == Removed {
			return ca.OldIndex < cb.OldIndex
		}
		return ca.NewIndex < cb.NewIndex
	})

	return changes
}

// AreIdentical reports whether both trees have the same number of blocks
// with pairwise equal hashes. A nil previous is never identical.
func AreIdentical(previous, next *mdtree.Tree) bool {
	if previous == nil || next == nil {
		return false
	}
	if previous.Len() != next.Len() {
		return false
	}
	for i := 0; i < previous.Len(); i++ {
		if previous.BlockHash(i) != next.BlockHash(i) {
			return false
		}
	}
	return true
}

// CacheHitRate is the fraction of changes that are Unchanged, or 0 for an
// empty list.
func CacheHitRate(changes []Change) float64 {
	if len(changes) == 0 {
		return 0
	}
	unchanged := 0
	for _, c := range changes {
		if c.Kind == Unchanged {
			unchanged++
		}
	}
	return float64(unchanged) / float64(len(changes))
}

// Summary counts changes by kind
type Summary struct {
	Unchanged int `json:"unchanged"`
	Modified  int `json:"modified"`
	Inserted  int `json:"inserted"`
	Removed   int `json:"removed"`
}

// Total returns the number of changes counted
func (s Summary) Total() int {
	return s.Unchanged + s.Modified + s.Inserted + s.Removed
}

// Summarize counts changes by kind
func Summarize(changes []Change) Summary {
	var s Summary
	for _, c := range changes {
		switch c.Kind {
		case Unchanged:
			s.Unchanged++
		case Modified:
			s.Modified++
		case Inserted:
			s.Inserted++
		case Removed:
			s.Removed++
		}
	}
	return s
}

// Result is the complete outcome of comparing two trees
type Result struct {
	Changes  []Change      `json:"changes"`
	Summary  Summary       `json:"summary"`
	Pattern  Pattern       `json:"pattern"`
	HitRate  float64       `json:"hit_rate"`
	Duration time.Duration `json:"duration"`
}

// Analyze diffs the trees and classifies the resulting change pattern
func Analyze(previous, next *mdtree.Tree) *Result {
	start := time.Now()
	changes := Diff(previous, next)

	return &Result{
		Changes:  changes,
		Summary:  Summarize(changes),
		Pattern:  Classify(changes),
		HitRate:  CacheHitRate(changes),
		Duration: time.Since(start),
	}
}
