package board

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialize_PersistedShape(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Assign(context.Background(), 0, 0, ash))

	data, err := b.Serialize()
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.HasPrefix(s, `[[{"operator":{"name":"Ash","primary":"R4-C","secondary":"M45 MEUSOC"},"equipment":{"armor":"","gloves":"","kit1":"","kit2":""}},{"operator":null,`), s)
	assert.Equal(t, TeamCount*SlotCount, strings.Count(s, `"equipment":`))
}

func TestSerialize_RoundTripIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	b := New(nil)
	require.NoError(t, b.Assign(ctx, 0, 0, ash))
	require.NoError(t, b.Assign(ctx, 3, 2, buck))
	require.NoError(t, b.SetEquipment(ctx, 3, 2, FieldKit2, "Breach Charge"))
	require.NoError(t, b.SetEquipment(ctx, 4, 0, FieldGloves, `quote " and unicode – ok`))

	first, err := b.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(first, nil)
	require.NoError(t, err)

	second, err := restored.Serialize()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestDeserialize_Malformed(t *testing.T) {
	valid, err := New(nil).Serialize()
	require.NoError(t, err)
	validSlot := `{"operator":null,"equipment":{"armor":"","gloves":"","kit1":"","kit2":""}}`
	team := func(slots ...string) string { return "[" + strings.Join(slots, ",") + "]" }
	fourSlots := team(validSlot, validSlot, validSlot, validSlot)
	board := func(teams ...string) string { return "[" + strings.Join(teams, ",") + "]" }

	cases := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{{{`},
		{name: "empty", data: ``},
		{name: "null", data: `null`},
		{name: "object", data: `{"teams": []}`},
		{name: "three teams", data: board(fourSlots, fourSlots, fourSlots)},
		{name: "six teams", data: board(fourSlots, fourSlots, fourSlots, fourSlots, fourSlots, fourSlots)},
		{name: "three slots", data: board(fourSlots, fourSlots, team(validSlot, validSlot, validSlot), fourSlots, fourSlots)},
		{name: "slot is null", data: board(fourSlots, fourSlots, fourSlots, fourSlots, team(validSlot, validSlot, validSlot, `null`))},
		{name: "missing equipment", data: board(fourSlots, fourSlots, fourSlots, fourSlots, team(validSlot, validSlot, validSlot, `{"operator":null}`))},
		{name: "extra slot field", data: board(fourSlots, fourSlots, fourSlots, fourSlots, team(validSlot, validSlot, validSlot, `{"operator":null,"equipment":{"armor":"","gloves":"","kit1":"","kit2":""},"x":1}`))},
		{name: "unknown equipment key", data: board(fourSlots, fourSlots, fourSlots, fourSlots, team(validSlot, validSlot, validSlot, `{"operator":null,"equipment":{"armor":"","gloves":"","kit1":"","boots":""}}`))},
		{name: "numeric equipment", data: board(fourSlots, fourSlots, fourSlots, fourSlots, team(validSlot, validSlot, validSlot, `{"operator":null,"equipment":{"armor":1,"gloves":"","kit1":"","kit2":""}}`))},
		{name: "operator missing secondary", data: board(fourSlots, fourSlots, fourSlots, fourSlots, team(validSlot, validSlot, validSlot, `{"operator":{"name":"Ash","primary":"x"},"equipment":{"armor":"","gloves":"","kit1":"","kit2":""}}`))},
		{name: "operator is string", data: board(fourSlots, fourSlots, fourSlots, fourSlots, team(validSlot, validSlot, validSlot, `{"operator":"Ash","equipment":{"armor":"","gloves":"","kit1":"","kit2":""}}`))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			var b *Board
			require.NotPanics(t, func() {
				b, err = Deserialize([]byte(tc.data), rec)
			})
			require.ErrorIs(t, err, ErrDeserialize)
			require.NotNil(t, b)
			assert.Equal(t, Teams{}, b.Teams())

			got, serr := b.Serialize()
			require.NoError(t, serr)
			assert.Equal(t, string(valid), string(got))

			// The fallback board keeps the saver.
			require.NoError(t, b.Assign(context.Background(), 0, 0, ash))
			assert.Len(t, rec.saves, 1)
		})
	}

	// Sanity check: the helpers build a valid board.
	_, err = Deserialize([]byte(board(fourSlots, fourSlots, fourSlots, fourSlots, fourSlots)), nil)
	require.NoError(t, err)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	b := New(rec)

	events, err := b.Apply(ctx, Command{Type: CmdAssign, Team: 1, Slot: 1, Operator: ash})
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtOperatorAssigned))
	assert.Equal(t, "Ash", events[0].Operator)

	events, err = b.Apply(ctx, Command{Type: CmdSetEquipment, Team: 1, Slot: 1, Field: FieldArmor, Value: "Heavy"})
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtEquipmentChanged))

	events, err = b.Apply(ctx, Command{Type: CmdSetEquipment, Team: 1, Slot: 1, Field: "hat", Value: "x"})
	require.ErrorIs(t, err, ErrInvalidField)
	assert.Nil(t, events)

	events, err = b.Apply(ctx, Command{Type: CmdReset})
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtBoardReset))
	assert.Equal(t, 0, b.Filled())

	_, err = b.Apply(ctx, Command{Type: "Swap"})
	require.ErrorIs(t, err, ErrUnsupportedCommand)
	assert.Len(t, rec.saves, 3)
}
