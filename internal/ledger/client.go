// Package ledger is the HTTP client for the authoritative remote budget
// ledger. It covers the five endpoints the synchronization engine consumes:
// account registration, canonical reads, spend updates, reauthorization and
// rate pushes. The client is transport only; it holds no budget state.
package ledger

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

	"github.com/bidstream-io/localbanker/internal/domain"
)

// reauthorizeVersion selects the reauthorization endpoint revision.
const reauthorizeVersion = "1"

// rateField is the wire name of the spend-rate field, in micro-units per
// period.
const rateField = "USD/1M"

// ErrParse marks a response body that could not be decoded. Callers separate
// it from transport failures, which carry a *StatusError or a connection
// error instead.
var ErrParse = errors.New("ledger: malformed response")

// StatusError is a non-2xx response from the ledger.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger: %s returned status %d", e.Endpoint, e.Code)
}

// Config holds the connection parameters for the remote ledger.
type Config struct {
	// BaseURL is the ledger service address, e.g. "http://banker:9985".
	BaseURL string
	// Timeout bounds each request end to end. Zero means 1s; the engine
	// relies on requests eventually finishing to release its flight
	// guards.
	Timeout time.Duration
	// MaxConnections caps connections to the ledger host. Zero means 8.
	MaxConnections int
}

// Client talks to the remote ledger over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a ledger client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("ledger: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("ledger: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	conns := cfg.MaxConnections
	if conns <= 0 {
		conns = 8
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: conns,
				MaxConnsPerHost:     conns,
			},
		},
	}, nil
}

// CreateAccount registers an account under the given role and returns the
// canonical record the ledger created or already held.
func (c *Client) CreateAccount(ctx context.Context, name string, role domain.Role) (domain.AccountRecord, error) {
	body := map[string]string{
		"accountName": name,
		"accountType": string(role),
	}
	var rec domain.AccountRecord
	if err := c.postJSON(ctx, "/accounts", body, &rec); err != nil {
		return domain.AccountRecord{}, err
	}
	if !rec.Valid() {
		return domain.AccountRecord{}, fmt.Errorf("%w: create account response for %q has no name", ErrParse, name)
	}
	return rec, nil
}

// Account fetches one account's canonical state, used for a full replace
// after a desync signal.
func (c *Client) Account(ctx context.Context, name string) (domain.AccountRecord, error) {
	var rec domain.AccountRecord
	if err := c.getJSON(ctx, "/accounts/"+url.PathEscape(name), &rec); err != nil {
		return domain.AccountRecord{}, err
	}
	if !rec.Valid() {
		return domain.AccountRecord{}, fmt.Errorf("%w: account response for %q has no name", ErrParse, name)
	}
	return rec, nil
}

// Reauthorize posts the full set of known account names and returns fresh
// canonical records for them.
func (c *Client) Reauthorize(ctx context.Context, names []string) ([]domain.AccountRecord, error) {
	if names == nil {
		names = []string{}
	}
	var recs []domain.AccountRecord
	if err := c.postJSON(ctx, "/reauthorize/"+reauthorizeVersion, names, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// SpendUpdate posts per-account spend snapshots and returns the ledger's
// per-account status map.
func (c *Client) SpendUpdate(ctx context.Context, snaps []domain.SpendSnapshot) (map[string]string, error) {
	if snaps == nil {
		snaps = []domain.SpendSnapshot{}
	}
	var statuses map[string]string
	if err := c.postJSON(ctx, "/spendupdate", snaps, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// SetRate pushes a spend-rate limit for one account. The response body
// carries nothing of interest.
func (c *Client) SetRate(ctx context.Context, name string, rate domain.Amount) error {
	body := map[string]int64{rateField: rate.Micros()}
	return c.postJSON(ctx, "/accounts/"+url.PathEscape(name)+"/rate", body, nil)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ledger: encode %s request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("ledger: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("ledger: build %s request: %w", endpoint, err)
	}
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("ledger: read %s response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrParse, endpoint, err)
	}
	return nil
}
