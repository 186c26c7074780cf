package filter

import (
	"context"

	"github.com/osa030/flowbeat/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain(filters ...Filter) *Chain {
	c := &Chain{
		filters: make([]Filter, 0, len(filters)),
	}
	for _, f := range filters {
		c.Add(f)
	}
	return c
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
// Filters are only applied if they declare they apply to the given origin.
func (c *Chain) Execute(ctx context.Context, t track.Track, origin Origin) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(origin) {
			continue
		}

		result := f.Check(ctx, t)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Partition splits tracks into accepted ones and the rejection result of the
// others, keyed by track ID.
func (c *Chain) Partition(ctx context.Context, tracks []track.Track, origin Origin) ([]track.Track, map[string]Result) {
	accepted := make([]track.Track, 0, len(tracks))
	rejected := make(map[string]Result)
	for _, t := range tracks {
		if result := c.Execute(ctx, t, origin); !result.Accepted {
			rejected[t.ID] = result
			continue
		}
		accepted = append(accepted, t)
	}
	return accepted, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
