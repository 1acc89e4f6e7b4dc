package appointments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreInsertAssignsID(t *testing.T) {
	s := NewMemoryStore()
	appt := &Appointment{Name: "A", Status: StatusScheduled}
	require.NoError(t, s.Insert(context.Background(), appt))
	assert.NotEmpty(t, appt.ID)
	assert.NotNil(t, appt.Messages)

	dup := &Appointment{ID: appt.ID}
	assert.ErrorIs(t, s.Insert(context.Background(), dup), ErrAlreadyExists)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	appt := &Appointment{Name: "A"}
	require.NoError(t, s.Insert(ctx, appt))
	require.NoError(t, s.AppendMessage(ctx, appt.ID, ChatMessage{ID: "1", Text: "hola"}))

	got, err := s.Get(ctx, appt.ID)
	require.NoError(t, err)
	got.Messages[0].Text = "mutated"
	got.Name = "mutated"

	again, err := s.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "hola", again.Messages[0].Text)
	assert.Equal(t, "A", again.Name)
}

func TestMemoryStoreUpdateExpectations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	appt := &Appointment{Name: "A", Status: StatusScheduled}
	require.NoError(t, s.Insert(ctx, appt))

	done := StatusCompleted
	assert.ErrorIs(t, s.Update(ctx, appt.ID, Patch{Status: &done}, StatusCancelled), ErrStatusConflict)
	require.NoError(t, s.Update(ctx, appt.ID, Patch{Status: &done}, StatusScheduled))

	got, _ := s.Get(ctx, appt.ID)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestMemoryStoreMissingIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	name := "x"
	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "nope", Patch{Name: &name}), ErrNotFound)
	assert.ErrorIs(t, s.AppendMessage(ctx, "nope", ChatMessage{}), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "nope"), ErrNotFound)
}

func TestMemoryStoreDeleteKeepsOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var ids []string
	for _, n := range []string{"a", "b", "c"} {
		appt := &Appointment{Name: n}
		require.NoError(t, s.Insert(ctx, appt))
		ids = append(ids, appt.ID)
	}
	require.NoError(t, s.Delete(ctx, ids[1]))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "c", list[1].Name)
}
