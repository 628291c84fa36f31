package discovery

// verdict is the outcome of observing one scroll round.
type verdict int

const (
	keepScrolling verdict = iota
	reachedCap
	stalled
)

func (v verdict) String() string {
	switch v {
	case reachedCap:
		return "reached_cap"
	case stalled:
		return "stalled"
	default:
		return "growing"
	}
}

// convergence tracks the visible result count across scroll rounds and
// decides when further scrolling is pointless.
type convergence struct {
	cap        int
	stallLimit int
	last       int
	stalls     int
}

func newConvergence(cap, stallLimit int) *convergence {
	if stallLimit <= 0 {
		stallLimit = 1
	}
	return &convergence{cap: cap, stallLimit: stallLimit}
}

// observe records the count seen after a round.
func (c *convergence) observe(count int) verdict {
	defer func() { c.last = count }()

	if count >= c.cap {
		return reachedCap
	}
	if count == c.last {
		c.stalls++
		if c.stalls >= c.stallLimit {
			return stalled
		}
		return keepScrolling
	}
	c.stalls = 0
	return keepScrolling
}
