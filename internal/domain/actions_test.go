package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEntityID(t *testing.T) {
	d, n, ok := SplitEntityID("light.kitchen")
	assert.True(t, ok)
	assert.Equal(t, "light", d)
	assert.Equal(t, "kitchen", n)

	_, _, ok = SplitEntityID("nodotchere")
	assert.False(t, ok)

	_, _, ok = SplitEntityID(".kitchen")
	assert.False(t, ok)

	_, _, ok = SplitEntityID("light.")
	assert.False(t, ok)
}

func TestActionTable_IsAllowed(t *testing.T) {
	table := DefaultActionTable()

	assert.True(t, table.IsAllowed("light.kitchen", "turn_on"))
	assert.True(t, table.IsAllowed("climate.living", "set_temperature"))
	assert.True(t, table.IsAllowed("media_player.tv", "volume_set"))

	// Known domain, unlisted action.
	assert.False(t, table.IsAllowed("light.kitchen", "set_temperature"))
	// Unknown domain.
	assert.False(t, table.IsAllowed("lock.front_door", "unlock"))
	// Malformed entity id.
	assert.False(t, table.IsAllowed("kitchen", "turn_on"))
}
