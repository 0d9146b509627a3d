package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-admin-console/authapi"
	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/internal/respond"
	"github.com/jrsteele09/go-admin-console/session"
	"github.com/jrsteele09/go-admin-console/tokenstore"
)

// Console API paths, as served by the console server.
const (
	PathLogin   = "/api/auth/login"
	PathRefresh = "/api/auth/refresh"
	PathProfile = "/api/auth/profile"
	PathLogout  = "/api/auth/logout"

	PathCatalog = "/api/catalog/"
	PathImages  = "/api/images/"
)

// APIError is a non-2xx answer from the console API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("console API responded %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return apperrors.ErrInvalidCredentials
	}
	return apperrors.ErrUpstream
}

// Client talks to the console API the way page script does: every call rides on the cookie jar and
// the HTTP-only tokens are never visible to the caller.
type Client struct {
	baseURL    *url.URL
	jar        http.CookieJar
	httpClient *http.Client
}

var _ session.Backend = (*Client)(nil)

type ClientOption func(*Client)

// WithTimeout bounds every call, including refreshes.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = transport
	}
}

func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[Browser NewClient] invalid base URL %q: %w", baseURL, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("[Browser NewClient] cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    u,
		jar:        jar,
		httpClient: &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Store is the script-visible view of the session cookies.
func (c *Client) Store() *tokenstore.JarStore {
	return tokenstore.NewJarStore(c.jar, c.baseURL)
}

// HTTPClient returns a client that shares the session cookies, for calls to the proxied services.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) Login(ctx context.Context, email, password string) (*authapi.AdminUserProfile, error) {
	var resp struct {
		User      authapi.AdminUserProfile `json:"user"`
		ExpiresIn int                      `json:"expiresIn"`
	}
	if err := c.do(ctx, http.MethodPost, PathLogin, authapi.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("[Browser Login] %w", err)
	}
	return &resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, PathLogout, nil, nil); err != nil {
		return fmt.Errorf("[Browser Logout] %w", err)
	}
	return nil
}

func (c *Client) Refresh(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, PathRefresh, nil, nil); err != nil {
		return fmt.Errorf("[Browser Refresh] %w", err)
	}
	return nil
}

func (c *Client) Profile(ctx context.Context) (*authapi.AdminUserProfile, error) {
	var profile authapi.AdminUserProfile
	if err := c.do(ctx, http.MethodGet, PathProfile, nil, &profile); err != nil {
		return nil, fmt.Errorf("[Browser Profile] %w", err)
	}
	return &profile, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", respond.ContentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", respond.ContentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrTransport, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e respond.ErrorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Message}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrapf(apperrors.ErrUnexpectedResponse, "%s %s: %v", method, path, err)
	}
	return nil
}
