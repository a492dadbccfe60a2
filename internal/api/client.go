// Package api is the request/response client for the dark store backend.
// Every response is a JSON envelope {"status": ..., "data": ...}.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/logging"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
)

const userAgent = "darkstore-sync"

// Envelope is the response wrapper used by every endpoint.
type Envelope struct {
	Status  any             `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client talks to the backend REST API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	log   zerolog.Logger
}

// New creates a Client. timeout <= 0 means no client-side timeout.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", baseURL)
	}

	return &Client{
		base:  u,
		token: token,
		http:  &http.Client{Timeout: timeout},
		log:   logging.Component("api"),
	}, nil
}

// ListOrders returns the raw order list for a dark store. The payload is
// validated by the ledger, not here.
func (c *Client) ListOrders(ctx context.Context, darkStoreID string) (json.RawMessage, error) {
	q := url.Values{"darkStoreId": {darkStoreID}}
	env, err := c.do(ctx, http.MethodGet, "/orders", q, nil)
	if err != nil {
		return nil, err
	}
	return unwrapOrders(env.Data), nil
}

// unwrapOrders accepts both a bare array and {"orders": [...]} as data.
func unwrapOrders(data json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return data
	}
	var wrapped struct {
		Orders json.RawMessage `json:"orders"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil || wrapped.Orders == nil {
		return data
	}
	return wrapped.Orders
}

// UpdateOrderStatus changes an order's status and returns the server's copy
// when the response carries one.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error) {
	body := map[string]string{"orderStatus": string(status)}
	env, err := c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/status", nil, body)
	if err != nil {
		return nil, err
	}

	var o order.Order
	if len(env.Data) == 0 || json.Unmarshal(env.Data, &o) != nil || o.ID == "" {
		return nil, nil
	}
	return &o, nil
}

// DeleteOrder deletes an order on the server.
func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/orders/"+url.PathEscape(orderID), nil, nil)
	return err
}

// RegisterPushToken associates a device push token with an owner. The
// server upserts by owner, so repeated calls are safe.
func (c *Client) RegisterPushToken(ctx context.Context, token, ownerID string) error {
	body := map[string]string{"token": token, "darkStoreId": ownerID}
	_, err := c.do(ctx, http.MethodPost, "/push-tokens", nil, body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (Envelope, error) {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return Envelope{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Envelope{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug().Err(err).Msg("close response body")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, fmt.Errorf("read %s %s body: %w", method, path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request")

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Envelope{}, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    env.Message,
		}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return Envelope{}, nil
	}
	if decodeErr != nil {
		return Envelope{}, fmt.Errorf("decode %s %s envelope: %w", method, path, decodeErr)
	}
	return env, nil
}
