// Package client talks to the revocation service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnavailable is returned when the service or its store cannot answer.
	// Callers should retry later without moving their watermark.
	ErrUnavailable = errors.New("revocation service unavailable")
)

// APIError is a non-2xx answer other than 503.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("revocation service: %d %s", e.Status, e.Message)
}

// Record mirrors the server representation. Data is left raw; its shape
// depends on Type.
type Record struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	RevokedAt int64           `json:"revoked_at"`
}

type Submission struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type TokenData struct {
	TokenHash     string `json:"token_hash"`
	HashAlgorithm string `json:"hash_algorithm,omitempty"`
}

type PasswordData struct {
	Username     string `json:"username"`
	IssuedBefore int64  `json:"issued_before,omitempty"`
}

type ClientData struct {
	ClientID     string `json:"client_id"`
	IssuedBefore int64  `json:"issued_before,omitempty"`
}

type QueryResult struct {
	ServerTime  int64
	Revocations []Record
}

type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBearerToken authenticates submissions.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Submit(ctx context.Context, sub Submission) (Record, error) {
	var out Record
	err := c.do(ctx, http.MethodPost, "/revocations", nil, sub, http.StatusCreated, &out)
	return out, err
}

// SubmitBatch stores up to 100 revocations. On a partial failure the stored
// records are returned together with the error.
func (c *Client) SubmitBatch(ctx context.Context, subs []Submission) ([]Record, error) {
	var out struct {
		Revocations []Record `json:"revocations"`
	}
	body := struct {
		Revocations []Submission `json:"revocations"`
	}{subs}
	err := c.do(ctx, http.MethodPost, "/revocations/batch", nil, body, http.StatusCreated, &out)
	return out.Revocations, err
}

func (c *Client) Query(ctx context.Context, since int64) (QueryResult, error) {
	var out struct {
		Meta struct {
			ServerTime int64 `json:"server_time"`
		} `json:"meta"`
		Revocations []Record `json:"revocations"`
	}
	q := url.Values{"since": {strconv.FormatInt(since, 10)}}
	if err := c.do(ctx, http.MethodGet, "/revocations", q, nil, http.StatusOK, &out); err != nil {
		return QueryResult{}, err
	}
	return QueryResult{ServerTime: out.Meta.ServerTime, Revocations: out.Revocations}, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in any, want int, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = q.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	if resp.StatusCode != want {
		// partial batch bodies still carry the stored records
		if out != nil && len(raw) > 0 {
			_ = json.Unmarshal(raw, out)
		}
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if resp.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("%w: %s", ErrUnavailable, e.Error)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
