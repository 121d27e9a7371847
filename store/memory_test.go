package store_test

import (
	"context"
	"testing"

	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/effective-security/mcphost/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MemoryStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	msgs, err := st.Messages(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msg1 := llms.MessageFromTextParts(llms.RoleHuman, "Hello")
	msg2 := llms.MessageFromTextParts(llms.RoleAI, "Hi there!")

	require.NoError(t, st.Add(ctx, "run-1", msg1))
	require.NoError(t, st.Add(ctx, "run-1", msg2))
	require.NoError(t, st.Add(ctx, "run-2", msg1))

	msgs, err = st.Messages(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)
	assert.Equal(t, llms.RoleAI, msgs[1].Role)

	// runs are isolated
	msgs, err = st.Messages(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	require.NoError(t, st.Reset(ctx, "run-1"))
	msgs, err = st.Messages(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// reset leaves other runs alone
	msgs, err = st.Messages(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
