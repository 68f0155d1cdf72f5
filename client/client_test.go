package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/symcanon"
	"github.com/njchilds90/symcanon/internal/config"
	"github.com/njchilds90/symcanon/internal/server"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	ts := httptest.NewServer(server.New(cfg, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestCall(t *testing.T) {
	c := New(newServer(t).URL)

	resp, err := c.Call(context.Background(), symcanon.ToolRequest{
		Tool: "diff",
		Params: map[string]interface{}{
			"expr": map[string]interface{}{
				"type": "pow",
				"base": map[string]interface{}{"type": "var", "name": "x"},
				"exp":  map[string]interface{}{"type": "const", "value": 2},
			},
			"var": "x",
		},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "2 * x", resp.String)
}

func TestCall_ToolError(t *testing.T) {
	c := New(newServer(t).URL)

	resp, err := c.Call(context.Background(), symcanon.ToolRequest{Tool: "integrate"})
	require.NoError(t, err)
	assert.Equal(t, "unknown tool: integrate", resp.Error)
}

func TestCall_BadRequest(t *testing.T) {
	c := New(newServer(t).URL)

	_, err := c.Call(context.Background(), symcanon.ToolRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSchemaAndHealth(t *testing.T) {
	c := New(newServer(t).URL)

	schema, err := c.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, symcanon.MCPToolSpec(), schema)
	assert.NoError(t, c.Health(context.Background()))
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"string":"x","result":{"type":"var","name":"x"}}`))
	}))
	defer ts.Close()

	c := New(ts.URL).SetRetry(3, time.Millisecond, 5*time.Millisecond)
	resp, err := c.Call(context.Background(), symcanon.ToolRequest{Tool: "simplify"})
	require.NoError(t, err)
	assert.Equal(t, "x", resp.String)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHealth_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(url).SetRetry(0, time.Millisecond, time.Millisecond)
	assert.Error(t, c.Health(context.Background()))
}
