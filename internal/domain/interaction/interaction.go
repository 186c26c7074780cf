// Package interaction provides the listener interaction entity reported to the API.
package interaction

// Type is the kind of interaction a listener had with a track.
type Type string

const (
	TypePlay Type = "PLAY" // Track played to the end
	TypeLike Type = "LIKE" // Track added to favorites
	TypeSkip Type = "SKIP" // Track skipped before it ended
)

var weights = map[Type]float64{
	TypePlay: 1.0,
	TypeLike: 5.0,
	TypeSkip: 0.0,
}

// Weight returns the recommendation weight the API assigns to the type.
func (t Type) Weight() float64 {
	return weights[t]
}

// Valid reports whether t is a known interaction type.
func (t Type) Valid() bool {
	_, ok := weights[t]
	return ok
}

// Interaction is a single interaction record.
type Interaction struct {
	TrackID string
	Type    Type
}
