package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_Weight(t *testing.T) {
	assert.Equal(t, 1.0, TypePlay.Weight())
	assert.Equal(t, 5.0, TypeLike.Weight())
	assert.Equal(t, 0.0, TypeSkip.Weight())
	assert.Equal(t, 0.0, Type("SHARE").Weight())
}

func TestType_Valid(t *testing.T) {
	assert.True(t, TypePlay.Valid())
	assert.True(t, TypeSkip.Valid())
	assert.False(t, Type("play").Valid())
}
