package toolserver_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/mcpclient"
	"github.com/effective-security/mcphost/toolserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text string `json:"text" jsonschema:"description=Text to echo back."`
}

type failInput struct {
	Reason string `json:"reason,omitempty"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	echo, err := toolserver.NewTool("echo", "Echo the given text.",
		func(_ context.Context, req *echoInput) (any, error) {
			return "echo: " + req.Text, nil
		})
	require.NoError(t, err)

	fail, err := toolserver.NewTool("always_fail", "Always fails.",
		func(_ context.Context, req *failInput) (any, error) {
			return nil, errors.Newf("tool failed: %s", req.Reason)
		})
	require.NoError(t, err)

	ts := httptest.NewServer(toolserver.New(echo, fail).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func Test_ServerCatalog(t *testing.T) {
	ts := newTestServer(t)

	// the host-side client consumes the catalog directly
	c := mcpclient.New("test", ts.URL)
	schemas, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, schemas, 2)

	assert.Equal(t, "echo", schemas[0].Name)
	assert.Equal(t, "Echo the given text.", schemas[0].Description)
	assert.Contains(t, string(schemas[0].InputSchema), `"text"`)
	assert.Equal(t, "always_fail", schemas[1].Name)
}

func Test_ServerExecute(t *testing.T) {
	ts := newTestServer(t)
	c := mcpclient.New("test", ts.URL)

	res, err := c.CallTool(context.Background(), "echo", json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.True(t, res.Success)

	var out string
	require.NoError(t, json.Unmarshal(res.Result, &out))
	assert.Equal(t, "echo: hello", out)
}

func Test_ServerExecuteToolFailure(t *testing.T) {
	ts := newTestServer(t)
	c := mcpclient.New("test", ts.URL)

	// tool-level failure is a completed call: HTTP 200 with success=false
	res, err := c.CallTool(context.Background(), "always_fail", json.RawMessage(`{"reason":"bad day"}`))
	require.NoError(t, err)
	assert.False(t, res.Success)

	var msg string
	require.NoError(t, json.Unmarshal(res.Result, &msg))
	assert.Equal(t, "tool failed: bad day", msg)
}

func Test_ServerExecuteUnknownTool(t *testing.T) {
	ts := newTestServer(t)
	c := mcpclient.New("test", ts.URL)

	_, err := c.CallTool(context.Background(), "no_such_tool", json.RawMessage(`{}`))
	require.Error(t, err)

	var serr *mcpclient.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 404, serr.StatusCode)
	assert.Contains(t, serr.Message, "unknown tool")
}

func Test_ServerExecuteInvalidBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/execute/tool", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, 400, resp.StatusCode)
}

func Test_ServerHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, 200, resp.StatusCode)
}
