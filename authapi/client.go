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

	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
)

// Auth service routes
const (
	PathAdminLogin   = "/v1/admin/auth/login"
	PathAdminProfile = "/v1/admin/auth/profile"
	PathAdminLogout  = "/v1/admin/auth/logout"
	PathTokenRefresh = "/v1/auth/token/refresh"
)

// API is the remote auth service as seen by the gateway. Each call is a single round trip.
type API interface {
	Login(ctx context.Context, req LoginRequest) (*AdminAuthResponse, error)
	RefreshToken(ctx context.Context, req TokenRefreshRequest) (*TokenRefreshResponse, error)
	GetProfile(ctx context.Context, accessToken string) (*AdminUserProfile, error)
	Logout(ctx context.Context, accessToken string) error
}

// Client talks JSON over HTTP to the auth service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ API = (*Client)(nil)

type ClientOption func(*Client)

// WithHTTPClient replaces the default client (e.g. to share a transport).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout bounds each call. Zero leaves the transport default.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cl *Client) {
		cl.httpClient.Timeout = timeout
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AdminAuthResponse, error) {
	var resp AdminAuthResponse
	if err := c.do(ctx, http.MethodPost, PathAdminLogin, "", req, &resp); err != nil {
		return nil, fmt.Errorf("[authapi Login] %w", err)
	}
	return &resp, nil
}

func (c *Client) RefreshToken(ctx context.Context, req TokenRefreshRequest) (*TokenRefreshResponse, error) {
	var resp TokenRefreshResponse
	if err := c.do(ctx, http.MethodPost, PathTokenRefresh, "", req, &resp); err != nil {
		return nil, fmt.Errorf("[authapi RefreshToken] %w", err)
	}
	return &resp, nil
}

func (c *Client) GetProfile(ctx context.Context, accessToken string) (*AdminUserProfile, error) {
	var resp AdminUserProfile
	if err := c.do(ctx, http.MethodGet, PathAdminProfile, accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("[authapi GetProfile] %w", err)
	}
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, PathAdminLogout, accessToken, nil, nil); err != nil {
		return fmt.Errorf("[authapi Logout] %w", err)
	}
	return nil
}

// problem is the RFC 7807 body the auth service returns on errors.
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrTransport, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var p problem
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&p)
		detail := p.Detail
		if detail == "" {
			detail = p.Title
		}
		return &ResponseError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrapf(apperrors.ErrUnexpectedResponse, "%s %s: %v", method, path, err)
	}
	return nil
}
