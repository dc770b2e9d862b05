package catalog

import "time"

// DefaultMaxAge is how long a scraped entity stays Fresh.
const DefaultMaxAge = 24 * time.Hour

// State is the cache state of a stored entity.
type State int

const (
	Missing State = iota
	Stale
	Fresh
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "missing"
	}
}

// Freshness classifies a stored entity. exists is false for Missing; a
// present entity with no timestamp is Stale. An age equal to maxAge is still
// Fresh.
func Freshness(exists bool, lastScrapedAt *time.Time, now time.Time, maxAge time.Duration) State {
	if !exists {
		return Missing
	}
	if lastScrapedAt == nil {
		return Stale
	}
	if now.Sub(*lastScrapedAt) > maxAge {
		return Stale
	}
	return Fresh
}
