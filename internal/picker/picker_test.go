package picker

import (
	"context"
	"errors"
	"testing"

	"github.com/DoyleJ11/operator-board/internal/board"
	"github.com/DoyleJ11/operator-board/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoster() *roster.Index {
	return roster.New([]roster.Group{
		{Letter: "A", Operators: []roster.Operator{{Name: "Ash", Primary: "R4-C", Secondary: "M45"}}},
		{Letter: "B", Operators: []roster.Operator{
			{Name: "Blitz", Primary: "Flash shield", Secondary: "P12"},
			{Name: "Buck", Primary: "C8-SFW", Secondary: "Skeleton key"},
		}},
	})
}

func names(ops []roster.Operator) []string {
	out := []string{}
	for _, op := range ops {
		out = append(out, op.Name)
	}
	return out
}

func TestPicker_SelectAssignsAndCloses(t *testing.T) {
	ctx := context.Background()
	p := New(testRoster())
	b := board.New(nil)
	require.NoError(t, b.SetEquipment(ctx, 2, 1, board.FieldArmor, "Heavy"))

	require.NoError(t, p.Open(2, 1))
	target, ok := p.Pending()
	require.True(t, ok)
	assert.Equal(t, Target{Team: 2, Slot: 1}, target)

	assert.Equal(t, []string{"Blitz", "Buck"}, names(p.Search("b")))
	assert.Equal(t, []string{"Buck"}, names(p.Search("BU")))
	assert.Equal(t, "BU", p.Query())

	got, err := p.Select(ctx, b, "Buck")
	require.NoError(t, err)
	assert.Equal(t, target, got)
	assert.False(t, p.IsOpen())
	assert.Equal(t, "", p.Query())

	slot, err := b.Slot(2, 1)
	require.NoError(t, err)
	assert.Equal(t, board.OperatorRef{Name: "Buck", Primary: "C8-SFW", Secondary: "Skeleton key"}, *slot.Operator)
	assert.Equal(t, "Heavy", slot.Equipment.Armor)
}

func TestPicker_CloseWithoutSelecting(t *testing.T) {
	p := New(testRoster())
	b := board.New(nil)

	require.NoError(t, p.Open(0, 0))
	p.Search("ash")
	p.Close()

	_, ok := p.Pending()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Filled())

	_, err := p.Select(context.Background(), b, "Ash")
	assert.ErrorIs(t, err, ErrNoPendingTarget)
	assert.Equal(t, 0, b.Filled())
}

func TestPicker_OpenRejectsBadIndex(t *testing.T) {
	p := New(testRoster())
	err := p.Open(5, 0)
	assert.ErrorIs(t, err, board.ErrIndex)
	assert.False(t, p.IsOpen())
}

func TestPicker_ReopenReplacesTarget(t *testing.T) {
	p := New(testRoster())
	require.NoError(t, p.Open(0, 0))
	p.Search("ash")
	require.NoError(t, p.Open(4, 3))

	target, ok := p.Pending()
	require.True(t, ok)
	assert.Equal(t, Target{Team: 4, Slot: 3}, target)
	assert.Equal(t, "", p.Query())
	assert.Len(t, p.Results(), 3)
}

func TestPicker_UnknownOperatorKeepsTarget(t *testing.T) {
	p := New(testRoster())
	b := board.New(nil)
	require.NoError(t, p.Open(1, 1))

	_, err := p.Select(context.Background(), b, "Nobody")
	assert.ErrorIs(t, err, ErrUnknownOperator)
	assert.True(t, p.IsOpen())
	assert.Equal(t, 0, b.Filled())
}

func TestPicker_FailedSaveKeepsTarget(t *testing.T) {
	p := New(testRoster())
	b := board.New(board.SaverFunc(func(context.Context, []byte) error { return errors.New("offline") }))
	require.NoError(t, p.Open(1, 1))

	_, err := p.Select(context.Background(), b, "Ash")
	assert.ErrorIs(t, err, board.ErrPersist)
	assert.True(t, p.IsOpen())
}

func TestPicker_EmptyRoster(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Open(0, 0))
	assert.Empty(t, p.Search(""))
}

func TestPicker_SeesRosterOnceLoaded(t *testing.T) {
	h := roster.NewHolder(nil)
	p := New(h)
	require.NoError(t, p.Open(0, 0))
	assert.Empty(t, p.Search("a"))

	h.Set(testRoster())
	assert.Equal(t, []string{"Ash"}, names(p.Search("a")))
}
