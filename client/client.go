// Package client calls a running symcanon tool server.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/njchilds90/symcanon"
)

// Client wraps resty with retries on throttling and server errors.
type Client struct {
	Resty *resty.Client
}

type apiError struct {
	Error string `json:"error"`
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", "symcanon-client/1.0").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil || resp == nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		})
	r.SetTransport(retryClient.HTTPClient.Transport)

	return &Client{Resty: r}
}

// SetRetry configures retry behavior.
func (c *Client) SetRetry(maxRetries int, minWait, maxWait time.Duration) *Client {
	c.Resty.SetRetryCount(maxRetries).
		SetRetryWaitTime(minWait).
		SetRetryMaxWaitTime(maxWait)
	return c
}

// Call runs one tool on the server. A tool-level failure is returned in
// ToolResponse.Error with a nil error; err covers transport and HTTP errors.
func (c *Client) Call(ctx context.Context, req symcanon.ToolRequest) (symcanon.ToolResponse, error) {
	var out symcanon.ToolResponse
	var apiErr apiError
	resp, err := c.Resty.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/tool")
	if err != nil {
		return out, fmt.Errorf("call %s: %w", req.Tool, err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("call %s: %s: %s", req.Tool, resp.Status(), apiErr.Error)
	}
	return out, nil
}

// Schema fetches the MCP tool schema.
func (c *Client) Schema(ctx context.Context) (string, error) {
	resp, err := c.Resty.R().SetContext(ctx).Get("/schema")
	if err != nil {
		return "", fmt.Errorf("schema: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("schema: %s", resp.Status())
	}
	return resp.String(), nil
}

// Health reports whether the server answers /health with status ok.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := c.Resty.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	if resp.IsError() || out.Status != "ok" {
		return fmt.Errorf("health: %s", resp.Status())
	}
	return nil
}
