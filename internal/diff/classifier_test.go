package diff

import (
	"testing"

	"github.com/livefir/livemark/internal/mdtree"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		old, new []string
		expected Pattern
	}{
		{"empty to empty", nil, nil, PatternNone},
		{"no changes", []string{"a", "b"}, []string{"a", "b"}, PatternNone},
		{"first render", nil, []string{"a"}, PatternReplace},
		{"append", []string{"a"}, []string{"a", "b", "c"}, PatternAppend},
		{"tail edited", []string{"a", "b"}, []string{"a", "bb"}, PatternEdit},
		{"insert at front", []string{"a"}, []string{"z", "a"}, PatternEdit},
		{"removal", []string{"a", "b"}, []string{"a"}, PatternEdit},
		{"full replacement", []string{"a", "b"}, []string{"c", "d"}, PatternReplace},
		{"cleared", []string{"a"}, []string{}, PatternReplace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := build(tt.old)
			if tt.old == nil {
				previous = nil
			}
			got := Classify(Diff(previous, build(tt.new)))
			if got != tt.expected {
				t.Errorf("Classify() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPattern_IsIncremental(t *testing.T) {
	if PatternReplace.IsIncremental() {
		t.Error("replace must not be incremental")
	}
	for _, p := range []Pattern{PatternNone, PatternAppend, PatternEdit} {
		if !p.IsIncremental() {
			t.Errorf("%s should be incremental", p)
		}
	}
}

func TestPatternName(t *testing.T) {
	if got := PatternName(PatternAppend); got != "Append only" {
		t.Errorf("PatternName(append) = %q", got)
	}
	if got := PatternName("bogus"); got != "Unknown pattern" {
		t.Errorf("PatternName(bogus) = %q", got)
	}
}

func build(texts []string) *mdtree.Tree {
	blocks := make([]mdtree.Node, len(texts))
	for i, s := range texts {
		blocks[i] = para(s)
	}
	return tree(blocks...)
}
