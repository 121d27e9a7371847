package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/effective-security/mcphost/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rediscon "github.com/testcontainers/testcontainers-go/modules/redis"
)

func Test_RedisStore(t *testing.T) {
	ctx := context.Background()
	redisContainer, err := rediscon.Run(ctx, "redis:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, redisContainer.Terminate(ctx))
	})

	state, err := redisContainer.State(ctx)
	require.NoError(t, err)
	require.True(t, state.Running)

	host, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := redis.ParseURL(host)
	require.NoError(t, err)

	client := redis.NewClient(options)
	rs := client.Ping(ctx)
	require.NoError(t, rs.Err(), "failed to connect to Redis")

	prefix := fmt.Sprintf("test-%d", time.Now().Unix())
	st := store.NewRedisStore(client, prefix, time.Minute)

	runID := "run-1"
	msgs, err := st.Messages(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msg1 := llms.MessageFromTextParts(llms.RoleHuman, "Hello")
	msg2 := llms.MessageFromParts(llms.RoleAI,
		llms.ToolCall{
			ID:   "call_1",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "read_file",
				Arguments: `{"file_path":"a.txt"}`,
			},
		},
	)
	msg3 := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
		ToolCallID: "call_1",
		Name:       "read_file",
		Content:    "contents of a",
	})

	require.NoError(t, st.Add(ctx, runID, msg1, msg2))
	require.NoError(t, st.Add(ctx, runID, msg3))

	msgs, err = st.Messages(ctx, runID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)

	// tool calls and results survive the round trip
	calls := msgs[1].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "read_file", calls[0].FunctionCall.Name)

	tr, ok := msgs[2].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "contents of a", tr.Content)

	// runs are isolated
	other, err := st.Messages(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, st.Reset(ctx, runID))
	msgs, err = st.Messages(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
