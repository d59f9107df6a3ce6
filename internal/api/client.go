// Package api is the client of the IPAL REST backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ipal-monitor/common/config"
	"ipal-monitor/internal/auth"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Error is a non-2xx backend response other than 401.
type Error struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound reports a 404 backend response.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// errorBody is the backend's error payload.
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// envelope is the backend's {success, data, count} wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Count   int             `json:"count,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Client performs authenticated requests. A 401 on an authenticated request
// revokes the session and is returned as auth.ErrSessionExpired.
type Client struct {
	http    *resty.Client
	session *auth.Session
	logger  *zap.Logger
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg *config.APIConfig, session *auth.Session, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// only idempotent reads are retried on server errors
			return err == nil && r != nil && r.Request.Method == http.MethodGet && r.StatusCode() >= 500
		})

	return &Client{
		http:    client,
		session: session,
		logger:  logger,
	}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *auth.Session {
	return c.session
}

// Get fetches path with query params into result.
func (c *Client) Get(ctx context.Context, path string, params map[string]string, result any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, result)
}

// Post sends body to path.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result)
}

// Put sends body to path.
func (c *Client) Put(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, result)
}

// Delete removes path.
func (c *Client) Delete(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, result)
}

// getData fetches path and decodes the envelope's data field into dest. It
// returns the envelope count.
func (c *Client) getData(ctx context.Context, path string, params map[string]string, dest any) (int, error) {
	var env envelope
	if err := c.Get(ctx, path, params, &env); err != nil {
		return 0, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return env.Count, nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return 0, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return env.Count, nil
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body, result any) error {
	var errBody errorBody
	req := c.http.R().
		SetContext(ctx).
		SetError(&errBody)

	token := c.session.Token()
	if token != "" {
		req.SetAuthToken(token)
	}
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	c.logger.Debug("API request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Bool("has_token", token != ""),
	)

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Error("API call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	// without a token a 401 is a plain rejection, e.g. bad credentials
	if resp.StatusCode() == http.StatusUnauthorized && token != "" {
		c.logger.Warn("Token expired or invalid, ending session",
			zap.String("method", method),
			zap.String("path", path),
		)
		c.session.Revoke(auth.ErrSessionExpired)
		return fmt.Errorf("%s %s: %w", method, path, auth.ErrSessionExpired)
	}

	if resp.IsError() {
		msg := errBody.Message
		if msg == "" {
			msg = errBody.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		c.logger.Error("API returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", msg),
		)
		return &Error{StatusCode: resp.StatusCode(), Method: method, Path: path, Message: msg}
	}
	return nil
}
