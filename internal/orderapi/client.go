// Package orderapi is the client for the storefront's admin order-list
// endpoint. Field-level normalization lives in internal/domain; this
// package only moves raw records.
package orderapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUnauthorized marks an expired or missing admin session. The tracker
// treats it as expected and keeps quiet about it.
var ErrUnauthorized = errors.New("order api: unauthorized")

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// RecentOrders fetches the newest orders, newest-first. The page is
// deliberately bounded: the tracker only catches recently created orders,
// not a long tail of old ones.
func (c *Client) RecentOrders(ctx context.Context, limit int) ([]map[string]any, error) {
	u, err := url.Parse(c.baseURL + "/orders")
	if err != nil {
		return nil, fmt.Errorf("order api: bad base url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "created_at:desc")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order api: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("order api: unexpected status %d", resp.StatusCode)
	}

	return decodeOrders(resp)
}

// decodeOrders accepts both a bare array and a {"data":[...]} envelope;
// the storefront has shipped both shapes over time.
func decodeOrders(resp *http.Response) ([]map[string]any, error) {
	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("order api: bad json: %w", err)
	}

	var orders []map[string]any
	if err := json.Unmarshal(body, &orders); err == nil {
		return orders, nil
	}

	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("order api: unrecognized response shape: %w", err)
	}
	return envelope.Data, nil
}
