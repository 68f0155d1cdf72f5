package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/symcanon"
	"github.com/njchilds90/symcanon/internal/config"
)

func testConfig() *config.Config {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	return cfg
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tool", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestToolEndpoint(t *testing.T) {
	s := New(testConfig(), nil)

	w := post(t, s.Handler(), `{
		"tool": "simplify",
		"params": {"expr": {"type": "add", "args": [
			{"type": "var", "name": "x"},
			{"type": "var", "name": "x"},
			{"type": "const", "value": 0}
		]}}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp symcanon.ToolResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Error)
	assert.Equal(t, "2 * x", resp.String)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestToolEndpoint_ToolError(t *testing.T) {
	s := New(testConfig(), nil)

	w := post(t, s.Handler(), `{"tool": "diff", "params": {"expr": {"type": "var", "name": "x"}}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp symcanon.ToolResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "missing param: var", resp.Error)
}

func TestToolEndpoint_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"tool": `},
		{"missing tool", `{"params": {}}`},
		{"params not object", `{"tool": "simplify", "params": [1, 2]}`},
	}
	s := New(testConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, s.Handler(), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestToolEndpoint_BodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 64
	s := New(cfg, nil)

	body := `{"tool": "simplify", "params": {"expr": {"type": "var", "name": "` + strings.Repeat("x", 128) + `"}}}`
	w := post(t, s.Handler(), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchemaAndHealth(t *testing.T) {
	s := New(testConfig(), nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schema", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, symcanon.MCPToolSpec(), w.Body.String())

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"cache_hits"`)
}

func TestRequestIDPropagation(t *testing.T) {
	s := New(testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(testConfig(), nil)
	post(t, s.Handler(), `{"tool": "simplify", "params": {"expr": {"type": "var", "name": "x"}}}`)
	post(t, s.Handler(), `{"tool": "integrate"}`)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `symcanon_tool_calls_total{outcome="ok",tool="simplify"} 1`)
	assert.Contains(t, body, `symcanon_tool_calls_total{outcome="error",tool="unknown"} 1`)
	assert.Contains(t, body, `symcanon_http_requests_total{method="POST",path="/tool",status="200"} 2`)
	assert.Contains(t, body, "symcanon_canonicalizer_passes")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2, Enabled: true}
	s := New(cfg, nil)

	codes := make([]int, 4)
	for i := range codes {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes[i] = w.Code
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])
}

func TestRateLimit_ForgetsIdleClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, MaxClients: 1}, nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, get("10.0.0.2:1000"))
	// 10.0.0.1 was evicted and starts with a full bucket.
	assert.Equal(t, http.StatusOK, get("10.0.0.1:1000"))
}

func TestCORSPreflight(t *testing.T) {
	s := New(testConfig(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/tool", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_GracefulShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := testConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = strconv.Itoa(port)
	s := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	url := "http://" + cfg.Server.Addr() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Post(url, "application/json", bytes.NewReader(nil))
	assert.Error(t, err)
}
