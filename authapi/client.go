package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-booking-session/internal/metrics"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "http://localhost:8090/api/v1"
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// Endpoint paths relative to the base URL.
const (
	PathLogin         = "/auth/login"
	PathRegister      = "/auth/register"
	PathRefresh       = "/auth/refresh"
	PathOwnerLogin    = "/owner/auth/login"
	PathOwnerRegister = "/owner/auth/register"
	PathOwnerRefresh  = "/owner/auth/refresh"
)

// Client talks JSON to the remote auth API.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its timeout is the only
// timeout applied to auth calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the transport timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient creates a client for baseURL, e.g. "http://localhost:8090/api/v1".
func NewClient(baseURL string, options ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, c.http, PathLogin, req, &resp); err != nil {
		return nil, fmt.Errorf("user login: %w", err)
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, c.http, PathRegister, req, &resp); err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) OwnerLogin(ctx context.Context, req OwnerLoginRequest) (*OwnerAuthResponse, error) {
	var resp OwnerAuthResponse
	if err := c.post(ctx, c.http, PathOwnerLogin, req, &resp); err != nil {
		return nil, fmt.Errorf("owner login: %w", err)
	}
	return &resp, nil
}

func (c *Client) OwnerRegister(ctx context.Context, req OwnerRegisterRequest) (*OwnerAuthResponse, error) {
	var resp OwnerAuthResponse
	if err := c.post(ctx, c.http, PathOwnerRegister, req, &resp); err != nil {
		return nil, fmt.Errorf("owner registration failed: %w", err)
	}
	return &resp, nil
}

// Refresh exchanges a still-valid user token for a new one.
func (c *Client) Refresh(ctx context.Context, bearer string) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.post(ctx, c.bearerClient(bearer), PathRefresh, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("user token refresh: %w", err)
	}
	return &resp, nil
}

// OwnerRefresh exchanges a still-valid owner token for a new one.
func (c *Client) OwnerRefresh(ctx context.Context, bearer string) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.post(ctx, c.bearerClient(bearer), PathOwnerRefresh, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("owner token refresh: %w", err)
	}
	return &resp, nil
}

// bearerClient wraps the base client so every request carries
// "Authorization: Bearer <token>".
func (c *Client) bearerClient(bearer string) *http.Client {
	return &http.Client{
		Timeout: c.http.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}),
			Base:   c.http.Transport,
		},
	}
}

func (c *Client) post(ctx context.Context, hc *http.Client, path string, body, out any) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveAuthAPIRequest(path, err, started) }()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrServer, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if json.Unmarshal(b, &body) == nil {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
		if apiErr.Details == "" {
			apiErr.Details = body.Message
		}
	}
	return apiErr
}
