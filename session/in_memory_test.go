package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistantstream/model"
)

func TestInMemoryStore_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	_, err := store.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Append(ctx, "t1", model.Message{Role: model.RoleUser, Content: "hi"}))
	require.NoError(t, store.Append(ctx, "t1", model.Message{Role: model.RoleAssistant, Content: "hello"}))

	sess, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", sess.ID)
	assert.Equal(t, []model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
	}, sess.Messages)
	assert.False(t, sess.Updated.Before(sess.Created))
}

func TestInMemoryStore_ReturnsClones(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Append(ctx, "t1", model.Message{Role: model.RoleUser, Content: "hi"}))

	sess, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	sess.Messages[0].Content = "changed"

	again, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Content)
}

func TestInMemoryStore_MaxMessages(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(func(o *InMemoryOptions) { o.MaxMessages = 2 })

	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, "t1", model.Message{Role: model.RoleUser, Content: c}))
	}

	sess, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "b", sess.Messages[0].Content)
	assert.Equal(t, "c", sess.Messages[1].Content)
}

func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Append(ctx, "t1", model.Message{Role: model.RoleUser, Content: "hi"}))

	require.NoError(t, store.Delete(ctx, "t1"))
	require.NoError(t, store.Delete(ctx, "unknown"))

	_, err := store.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}
