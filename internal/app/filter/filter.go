// Package filter provides the admission filter chain applied to tracks
// before they enter the queue.
package filter

import (
	"context"

	"github.com/osa030/flowbeat/internal/domain/track"
)

// Origin tells where a track entering the queue comes from.
type Origin int

const (
	OriginUser    Origin = iota // Appended or selected by a caller
	OriginCatalog               // Part of a whole queue built from a catalog
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginCatalog:
		return "catalog"
	default:
		return "unknown"
	}
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "not_playable", "duration_limit_exceeded"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to tracks of the given origin.
	AppliesTo(origin Origin) bool
	// Check performs the filter check.
	Check(ctx context.Context, t track.Track) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
