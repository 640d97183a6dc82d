package protocols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_Check(t *testing.T) {
	set, err := Build()
	require.NoError(t, err)
	assert.NoError(t, set.Check())
}

func TestSet_Describe(t *testing.T) {
	set, err := Default()
	require.NoError(t, err)

	kinds := set.Describe()
	byKind := make(map[string]KindInfo, len(kinds))
	for _, k := range kinds {
		byKind[string(k.Kind)] = k
	}

	combat, ok := byKind[string(KindCombatEvent)]
	require.True(t, ok)
	require.Len(t, combat.Variants, 1)
	v := combat.Variants[0]
	assert.Equal(t, "1.14.4", v.From)
	assert.Equal(t, "1.16.5", v.To)
	assert.Equal(t, "event", v.Discriminant)
	assert.Contains(t, v.Cases, CombatDied)
	assert.Equal(t, int32(0x32), v.Clientbound["1.14.4"])
	assert.Equal(t, int32(0x33), v.Clientbound["1.15"])
	assert.Equal(t, int32(0x31), v.Clientbound["1.16.5"])

	// the recursive equipment chain is cut at the first repetition
	equipment := byKind[string(KindEntityEquipment)]
	current := equipment.Variants[len(equipment.Variants)-1]
	assert.Empty(t, current.To)
	require.NotEmpty(t, current.Fields)

	respawn := byKind[string(KindRespawn)]
	legacy := respawn.Variants[0]
	synthesized := 0
	for _, f := range legacy.Fields {
		if f.Synthesized {
			synthesized++
		}
	}
	assert.Positive(t, synthesized)
}
