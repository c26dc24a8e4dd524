// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package userstore is a client for the external user record store, a
// PostgREST style HTTP API. Row updates address records by an identity
// column, so applying the same update twice converges to the same row
// state. That idempotency is what makes webhook redelivery safe upstream.
package userstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abcxyz/pkg/logging"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// maxResponseBytes bounds how much of a store response is read.
const maxResponseBytes = 1 << 20

// ErrUserNotFound is returned when no record matches the identity.
var ErrUserNotFound = fmt.Errorf("no user record matched the identity")

// Config holds the connection settings for the record store.
type Config struct {
	// Endpoint is the base URL of the store, without the /rest/v1 suffix.
	Endpoint string

	// APIKey authenticates this service to the store. For stores that
	// issue JWT service keys this must be the service role key; row level
	// security silently drops writes made with an anon key.
	APIKey string

	// Table is the table holding user records.
	Table string

	// IdentityColumn is the column the identity addresses records by.
	IdentityColumn string

	// Timeout bounds every store call.
	Timeout time.Duration
}

// Client talks to the record store over HTTP.
type Client struct {
	endpoint       string
	apiKey         string
	table          string
	identityColumn string
	httpClient     *http.Client
}

// New validates cfg and builds a store client. No connection is made until
// the first call.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("store endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("store endpoint %q is not a valid base URL", cfg.Endpoint)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("store api key is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("store table is required")
	}
	if cfg.IdentityColumn == "" {
		return nil, fmt.Errorf("store identity column is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("store timeout must be positive")
	}

	if err := inspectAPIKey(ctx, cfg.APIKey); err != nil {
		return nil, fmt.Errorf("store api key failed inspection: %w", err)
	}

	return &Client{
		endpoint:       strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:         cfg.APIKey,
		table:          cfg.Table,
		identityColumn: cfg.IdentityColumn,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// SetPaid drives the paid flag of the record matching identity to the
// given value. It returns ErrUserNotFound when no record matched and nil
// when the record now carries the desired state, whether or not this call
// changed it.
func (c *Client) SetPaid(ctx context.Context, identity string, paid bool) error {
	body, err := json.Marshal(map[string]bool{"paid": paid})
	if err != nil {
		return fmt.Errorf("failed to marshal record update: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, c.tableURL(identity, nil), body)
	if err != nil {
		return err
	}
	// Ask for the updated rows back so a zero row match is visible.
	req.Header.Set("Prefer", "return=representation")

	rows, err := c.do(req)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetPaid reports the paid flag of the record matching identity.
func (c *Client) GetPaid(ctx context.Context, identity string) (bool, error) {
	q := url.Values{}
	q.Set("select", "paid")

	req, err := c.newRequest(ctx, http.MethodGet, c.tableURL(identity, q), nil)
	if err != nil {
		return false, err
	}

	rows, err := c.do(req)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, ErrUserNotFound
	}

	var row struct {
		Paid bool `json:"paid"`
	}
	if err := json.Unmarshal(rows[0], &row); err != nil {
		return false, fmt.Errorf("failed to decode user record: %w", err)
	}
	return row.Paid, nil
}

// Upsert creates or replaces the record for identity with the given paid
// state. Used by provisioning and test tooling rather than the webhook
// path, which only ever patches existing records.
func (c *Client) Upsert(ctx context.Context, identity string, paid bool) error {
	body, err := json.Marshal([]map[string]any{{
		c.identityColumn: identity,
		"paid":           paid,
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	q := url.Values{}
	q.Set("on_conflict", c.identityColumn)
	u := fmt.Sprintf("%s/rest/v1/%s?%s", c.endpoint, c.table, q.Encode())

	req, err := c.newRequest(ctx, http.MethodPost, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")

	if _, err := c.do(req); err != nil {
		return err
	}
	return nil
}

// tableURL builds the table endpoint filtered to the identity, with any
// extra query parameters appended.
func (c *Client) tableURL(identity string, extra url.Values) string {
	q := url.Values{}
	q.Set(c.identityColumn, "eq."+identity)
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return fmt.Sprintf("%s/rest/v1/%s?%s", c.endpoint, c.table, q.Encode())
}

// newRequest builds a store request carrying the auth headers.
func (c *Client) newRequest(ctx context.Context, method, u string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create store request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes the request and decodes the row array the store returns.
func (c *Client) do(req *http.Request) ([]json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read store response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("store returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode store response: %w", err)
	}
	return rows, nil
}

// inspectAPIKey fails fast on keys that the store would accept and then
// quietly refuse to write with. Stores that issue JWT keys mark them with
// a role claim; only the service role may update user records. Keys that
// are not JWTs pass through untouched.
func inspectAPIKey(ctx context.Context, key string) error {
	logger := logging.FromContext(ctx)

	tok, err := jwt.ParseInsecure([]byte(key))
	if err != nil {
		logger.DebugContext(ctx, "store api key is not a JWT, treating as opaque")
		return nil //nolint:nilerr // opaque keys are valid
	}

	if role, ok := tok.PrivateClaims()["role"].(string); ok && role != "service_role" {
		return fmt.Errorf("key carries role %q, want %q", role, "service_role")
	}
	if exp := tok.Expiration(); !exp.IsZero() && time.Now().After(exp) {
		return fmt.Errorf("key expired at %s", exp.Format(time.RFC3339))
	}
	return nil
}
