// Package tle fetches, parses and caches two-line element sets for the
// local SGP4 position source.
package tle

import "time"

// ElementSet is one satellite's two-line element set.
type ElementSet struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Age returns how old the element set's epoch is at now.
func (e ElementSet) Age(now time.Time) time.Duration {
	return now.Sub(e.Epoch)
}

// Find returns the first element set for noradID.
func Find(sets []ElementSet, noradID int) (ElementSet, bool) {
	for _, s := range sets {
		if s.NORADID == noradID {
			return s, true
		}
	}
	return ElementSet{}, false
}
