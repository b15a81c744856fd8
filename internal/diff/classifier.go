package diff

// Pattern summarizes the shape of a change list
type Pattern string

const (
	PatternNone    Pattern = "none"    // every block reused
	PatternAppend  Pattern = "append"  // unchanged prefix followed by new blocks
	PatternEdit    Pattern = "edit"    // some blocks reused, some changed in place
	PatternReplace Pattern = "replace" // nothing reused
)

// Classify determines the pattern of a change list produced by Diff.
//
// An empty list is PatternNone. A list with no Unchanged record is
// PatternReplace. Append requires that every non-Unchanged record is an
// insertion placed after all reused blocks.
func Classify(changes []Change) Pattern {
	unchanged := 0
	for _, c := range changes {
		if c.Kind == Unchanged {
			unchanged++
		}
	}

	switch {
	case unchanged == len(changes):
		return PatternNone
	case unchanged == 0:
		return PatternReplace
	}

	for _, c := range changes {
		switch c.Kind {
		case Unchanged:
			if c.NewIndex >= unchanged {
				return PatternEdit
			}
		case Inserted:
			if c.NewIndex < unchanged {
				return PatternEdit
			}
		default:
			return PatternEdit
		}
	}
	return PatternAppend
}

// IsIncremental reports whether a pattern reuses at least one block
func (p Pattern) IsIncremental() bool {
	return p == PatternNone || p == PatternAppend || p == PatternEdit
}

// PatternName returns a human-readable name for a pattern
func PatternName(p Pattern) string {
	switch p {
	case PatternNone:
		return "No changes"
	case PatternAppend:
		return "Append only"
	case PatternEdit:
		return "Partial edit"
	case PatternReplace:
		return "Full replacement"
	default:
		return "Unknown pattern"
	}
}
