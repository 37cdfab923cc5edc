package model

// Level is the depth of an administration in the hierarchy.
// RootLevel is the most global; larger values are more local.
type Level int

const RootLevel Level = 0

// MoreLocalThan reports whether l sits deeper in the tree than other.
func (l Level) MoreLocalThan(other Level) bool {
	return l > other
}

// MoreGlobalThan reports whether l sits closer to the root than other.
func (l Level) MoreGlobalThan(other Level) bool {
	return l < other
}

// Next returns the level one step more local than l.
func (l Level) Next() Level {
	return l + 1
}

// Prev returns the level one step more global than l. The root has no parent level.
func (l Level) Prev() (Level, bool) {
	if l <= RootLevel {
		return RootLevel, false
	}
	return l - 1, true
}

func (l Level) IsRoot() bool {
	return l == RootLevel
}
