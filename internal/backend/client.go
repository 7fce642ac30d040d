// Package backend talks to the ERP backend over its JSON API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-desk/internal/listing"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 64 << 10
	settingsPath   = "/api/config"
)

// Client wraps interactions with the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a new client. A non-positive timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings is the backend configuration relevant to list views.
type Settings struct {
	ItemsPerPage int `json:"items_por_pagina"`
}

// Ping checks that the backend answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, settingsPath, nil, nil, nil)
}

// Settings fetches the backend configuration.
func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	if err := c.do(ctx, http.MethodGet, settingsPath, nil, nil, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// List fetches a list endpoint. The response may be an envelope with items and
// total or a bare array, in which case total is its length.
func (c *Client) List(ctx context.Context, path string, q listing.Query) (listing.Result, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, listParams(q), nil, &raw); err != nil {
		return listing.Result{}, err
	}
	return decodeList(raw)
}

// Search calls a lookup endpoint with the search term.
func (c *Client) Search(ctx context.Context, path, term string) ([]listing.Record, error) {
	params := url.Values{}
	params.Set("search", term)
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, params, nil, &raw); err != nil {
		return nil, err
	}
	res, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// SetReconciled marks a bank movement as reconciled or not.
func (c *Client) SetReconciled(ctx context.Context, account, movement string, reconciled bool) error {
	path := fmt.Sprintf("/api/bancos/%s/movimientos/%s", url.PathEscape(account), url.PathEscape(movement))
	body := map[string]bool{"conciliado": reconciled}
	return c.do(ctx, http.MethodPatch, path, nil, body, nil)
}

// Source adapts a list endpoint to listing.Source.
func (c *Client) Source(path string) listing.Source {
	return listing.SourceFunc(func(ctx context.Context, q listing.Query) (listing.Result, error) {
		return c.List(ctx, path, q)
	})
}

// Lookup adapts a search endpoint to a lookup function.
func (c *Client) Lookup(path string) func(ctx context.Context, term string) ([]listing.Record, error) {
	return func(ctx context.Context, term string) ([]listing.Record, error) {
		return c.Search(ctx, path, term)
	}
}

func listParams(q listing.Query) url.Values {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Page == 0 && q.PerPage == 0 {
		return params
	}
	f := q.Filter
	if term := strings.TrimSpace(f.Search); term != "" {
		params.Set("search", term)
	}
	if from := strings.TrimSpace(f.Dates.Start); from != "" {
		params.Set("from", from)
	}
	if to := strings.TrimSpace(f.Dates.End); to != "" {
		params.Set("to", to)
	}
	if f.Status != "" && f.Status != listing.StatusAll {
		params.Set("status", f.Status)
	}
	return params
}

func decodeList(raw json.RawMessage) (listing.Result, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return listing.Result{Items: []listing.Record{}}, nil
	}
	if trimmed[0] == '[' {
		var items []listing.Record
		if err := unmarshal(trimmed, &items); err != nil {
			return listing.Result{}, err
		}
		if items == nil {
			items = []listing.Record{}
		}
		return listing.Result{Items: items, Total: len(items)}, nil
	}
	var envelope struct {
		Items []listing.Record `json:"items"`
		Total *int             `json:"total"`
	}
	if err := unmarshal(trimmed, &envelope); err != nil {
		return listing.Result{}, err
	}
	res := listing.Result{Items: envelope.Items, Total: len(envelope.Items)}
	if res.Items == nil {
		res.Items = []listing.Record{}
	}
	if envelope.Total != nil {
		res.Total = *envelope.Total
	}
	return res, nil
}

// unmarshal keeps numbers as json.Number so amounts survive untouched.
func unmarshal(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.Debug("backend request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned status %d", ErrUpstream, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &RejectionError{Status: resp.StatusCode, Message: rejectionMessage(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	return unmarshal(data, out)
}

func rejectionMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return ""
	}
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.text()
}
