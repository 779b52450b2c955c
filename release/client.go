package release

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIURL is the base of the public GitHub REST API.
const DefaultAPIURL = "https://api.github.com"

// A Client sends requests to a GitHub-compatible REST API. Credentials are
// only attached to requests that target the API host.
type Client struct {
	BaseURL   string
	Token     string
	UserAgent string
	HTTP      *http.Client
}

// NewClient returns a client for the API at baseURL (DefaultAPIURL if empty)
// using token for authentication. Proxy settings come from the environment.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     token,
		UserAgent: "relget",
		HTTP:      &http.Client{},
	}
}

// Probe checks that everything the client needs is present before any request
// is made: a usable API base URL and, for https, the system trust store.
func Probe(baseURL string) error {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return &DependencyError{Err: fmt.Errorf("api url: %w", err)}
	}
	if u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return &DependencyError{Err: fmt.Errorf("api url %q must be an absolute http(s) URL", baseURL)}
	}
	if u.Scheme == "https" {
		if _, err := x509.SystemCertPool(); err != nil {
			return &DependencyError{Err: fmt.Errorf("system certificate pool: %w", err)}
		}
	}
	return nil
}

func (c *Client) apiHost() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Get issues a GET request for rawurl with the given Accept header.
func (c *Client) Get(rawurl, accept string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Token != "" && req.URL.Host == c.apiHost() {
		req.Header.Set("Authorization", "token "+c.Token)
	}

	return c.HTTP.Do(req)
}

// getJSON fetches path relative to the API base and decodes a 200 response
// into v. Any other status is returned as an *APIError.
func (c *Client) getJSON(path string, v interface{}) error {
	u := c.BaseURL + path
	resp, err := c.Get(u, "application/vnd.github+json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   body,
			URL:    u,
		}
	}

	return json.Unmarshal(body, v)
}

// isStatus reports whether err is an *APIError with the given status code.
func isStatus(err error, code int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

type rateLimitJSON struct {
	Resources map[string]RateLimit `json:"resources"`
}

type RateLimit struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

func (r RateLimit) ResetTime() time.Time {
	return time.Unix(r.Reset, 0)
}

func (r RateLimit) String() string {
	return fmt.Sprintf("Limit: %d, Remaining: %d, Reset: %v", r.Limit, r.Remaining, r.ResetTime())
}

// RateLimit returns the core API rate limit for the client's credentials.
func (c *Client) RateLimit() (RateLimit, error) {
	var parsed rateLimitJSON
	if err := c.getJSON("/rate_limit", &parsed); err != nil {
		return RateLimit{}, &TransportError{Op: "fetch rate limit", Err: err}
	}
	return parsed.Resources["core"], nil
}
