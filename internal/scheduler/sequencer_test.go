package scheduler

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

func seq(n int) []*domain.ScheduleEvent {
	events := make([]*domain.ScheduleEvent, n)
	for i := range events {
		events[i] = &domain.ScheduleEvent{ID: uuid.New(), SequenceOrder: int32(i + 1)}
	}
	return events
}

func ids(events []*domain.ScheduleEvent) []uuid.UUID {
	out := make([]uuid.UUID, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func orders(events []*domain.ScheduleEvent) []int32 {
	out := make([]int32, len(events))
	for i, ev := range events {
		out[i] = ev.SequenceOrder
	}
	return out
}

func TestInsertAt(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		position int
		wantIdx  int
	}{
		{name: "append when position is zero", size: 3, position: 0, wantIdx: 3},
		{name: "explicit tail", size: 3, position: 4, wantIdx: 3},
		{name: "head", size: 3, position: 1, wantIdx: 0},
		{name: "middle", size: 3, position: 2, wantIdx: 1},
		{name: "into empty list", size: 0, position: 0, wantIdx: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := seq(tt.size)
			before := ids(events)
			ev := &domain.ScheduleEvent{ID: uuid.New()}

			out, err := insertAt(events, ev, tt.position)
			require.NoError(t, err)
			require.Len(t, out, tt.size+1)
			assert.Equal(t, ev.ID, out[tt.wantIdx].ID)
			require.NoError(t, verifySequence(out))

			// the rest keep their relative order
			rest := append(ids(out[:tt.wantIdx]), ids(out[tt.wantIdx+1:])...)
			assert.Equal(t, before, rest)
		})
	}
}

func TestInsertAtOutOfRange(t *testing.T) {
	for _, position := range []int{-1, 5, 100} {
		events := seq(3)
		_, err := insertAt(events, &domain.ScheduleEvent{ID: uuid.New()}, position)
		require.ErrorIs(t, err, domain.ErrInvalidPosition, "position %d", position)

		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, 4, de.Detail["max"])
		assert.Equal(t, []int32{1, 2, 3}, orders(events))
	}
}

func TestRemoveByID(t *testing.T) {
	events := seq(4)
	target := events[1].ID

	out, removed, err := removeByID(events, target)
	require.NoError(t, err)
	assert.Equal(t, target, removed.ID)
	assert.Equal(t, []int32{1, 2, 3}, orders(out))
	assert.NotContains(t, ids(out), target)

	_, _, err = removeByID(out, uuid.New())
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestMoveTo(t *testing.T) {
	events := seq(4)
	a, b, c, d := events[0].ID, events[1].ID, events[2].ID, events[3].ID

	out, err := moveTo(events, a, 3)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b, c, a, d}, ids(out))
	assert.Equal(t, []int32{1, 2, 3, 4}, orders(out))

	out, err = moveTo(out, d, 1)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{d, b, c, a}, ids(out))

	out, err = moveTo(out, c, 3)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{d, b, c, a}, ids(out), "moving to the current position is a no-op")

	_, err = moveTo(out, a, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidPosition)
	_, err = moveTo(out, a, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidPosition)
	_, err = moveTo(out, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestVerifySequence(t *testing.T) {
	events := seq(3)
	require.NoError(t, verifySequence(events))
	require.NoError(t, verifySequence(nil))

	events[2].SequenceOrder = 4
	assert.Error(t, verifySequence(events))

	events[2].SequenceOrder = 2
	assert.Error(t, verifySequence(events))
}
