package meterapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"context"
)

var (
	// ErrConnection marks transient transport failures. Callers retry the
	// affected day on the next scheduled pass.
	ErrConnection = errors.New("meterapi: connection error")

	// ErrAuth marks rejected credentials. Not retryable without operator
	// intervention.
	ErrAuth = errors.New("meterapi: authentication failed")

	// ErrTokenExpired marks an expired session. Callers re-login once and
	// retry; a second failure aborts the pass.
	ErrTokenExpired = errors.New("meterapi: session token expired")
)

// Client is a minimal REST client for the remote metering service.
type Client struct {
	baseURL  string
	username string
	password string

	mu    sync.Mutex
	token string

	client *http.Client
}

// NewClient constructs a metering client.
func NewClient(baseURL, username, password string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("meterapi: empty base url")
	}
	if username == "" || password == "" {
		return nil, errors.New("meterapi: empty credentials")
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// Login authenticates and stores the session token.
func (c *Client) Login(ctx context.Context) error {
	body := loginRequest{Username: c.username, Password: c.password}
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/session/login", body, &resp); err != nil {
		return err
	}
	if !resp.Success || resp.Token == "" {
		return ErrAuth
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

type chartResponse struct {
	Zones map[string][]float64 `json:"zones"`
}

// FetchHourlyDeltas returns up to 24 hourly increments per zone for one
// calendar day. Missing hours are simply absent from the arrays.
func (c *Client) FetchHourlyDeltas(ctx context.Context, meterID string, day time.Time) (map[string][]float64, error) {
	if meterID == "" {
		return nil, errors.New("meterapi: empty meter id")
	}
	path := fmt.Sprintf("/api/meters/%s/chart?day=%s", meterID, day.UTC().Format("2006-01-02"))
	var resp chartResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Zones, nil
}

type totalsResponse struct {
	Zones map[string]float64 `json:"zones"`
}

// FetchTotals returns the live absolute meter reading per zone. The reading
// is occasionally stale or glitched; callers validate it before use.
func (c *Client) FetchTotals(ctx context.Context, meterID string) (map[string]float64, error) {
	if meterID == "" {
		return nil, errors.New("meterapi: empty meter id")
	}
	var resp totalsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/meters/"+meterID+"/totals", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Zones, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("X-Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrTokenExpired
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: http %d", ErrConnection, resp.StatusCode)
	case resp.StatusCode >= 300:
		return fmt.Errorf("meterapi: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid json: %v", ErrConnection, err)
	}
	return nil
}
