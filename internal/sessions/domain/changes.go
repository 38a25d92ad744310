package domain

import "sort"

// Changes lists artifact names that differ between two sessions.
type Changes struct {
	Added   []string
	Changed []string
	Removed []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// Compare diffs two name to hash maps. Results are sorted by name.
func Compare(prev, next map[string]uint64) Changes {
	var c Changes
	for name, h := range next {
		old, ok := prev[name]
		switch {
		case !ok:
			c.Added = append(c.Added, name)
		case old != h:
			c.Changed = append(c.Changed, name)
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			c.Removed = append(c.Removed, name)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Changed)
	sort.Strings(c.Removed)
	return c
}
