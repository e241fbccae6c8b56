// Package platform provides a typed client for the JFrog-style platform REST
// API: reachability and auth probes plus the Artifactory trusted-keys store.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ErrAliasConflict is returned by CreateTrustedKey when the platform already
// holds a key under the requested alias (HTTP 409).
var ErrAliasConflict = errors.New("trusted key alias already exists")

// platformURLPattern accepts https://<hostname> with at least one dot, which
// matches both SaaS (*.jfrog.io) and self-hosted platform domains.
var platformURLPattern = regexp.MustCompile(`^https://[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?)+$`)

// ValidateURL strips a trailing slash and checks the base URL shape. It
// returns the normalized URL or an error describing the expected format.
func ValidateURL(raw string) (string, error) {
	normalized := strings.TrimRight(strings.TrimSpace(raw), "/")
	if normalized == "" {
		return "", errors.New("platform URL is required")
	}
	if !platformURLPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid platform URL %q: expected https://<hostname>", raw)
	}
	return normalized, nil
}

// TrustedKey is one record in the platform's trusted-key store.
type TrustedKey struct {
	Alias    string `json:"alias"`
	Kid      string `json:"kid"`
	Key      string `json:"key,omitempty"`
	IssuedBy string `json:"issued_by,omitempty"`
	IssuedOn string `json:"issued_on,omitempty"`
	ValidNow bool   `json:"valid_now,omitempty"`
}

type trustedKeyList struct {
	Keys []TrustedKey `json:"keys"`
}

// Client talks to a single target platform. It is safe for sequential use by
// one operator run; nothing is cached between calls.
type Client struct {
	BaseURL    string
	AdminToken string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Config holds what is needed to construct a Client.
type Config struct {
	BaseURL    string
	AdminToken string
	Logger     *slog.Logger
}

// NewClient validates the base URL and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	base, err := ValidateURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		BaseURL:    base,
		AdminToken: cfg.AdminToken,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     cfg.Logger,
	}, nil
}

const (
	pingPath        = "/artifactory/api/system/ping"
	versionPath     = "/artifactory/api/system/version"
	trustedKeysPath = "/artifactory/api/security/keys/trusted"
)

// Ping performs the unauthenticated reachability probe with a bounded
// timeout. Any transport error or non-2xx status means the platform is not
// worth proceeding against.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c.Logger.Debug("pinging platform", "url", c.BaseURL+pingPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+pingPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("platform ping returned %s", resp.Status)
	}
	return nil
}

// CheckAuth probes a lightweight authenticated endpoint with the admin token.
func (c *Client) CheckAuth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+versionPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth probe failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform rejected admin token: %s", resp.Status)
	}
	return nil
}

// ListTrustedKeys returns every trusted key currently on the platform.
func (c *Client) ListTrustedKeys(ctx context.Context) ([]TrustedKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+trustedKeysPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server error: %s: %s", resp.Status, string(respBytes))
	}
	var list trustedKeyList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode trusted key list: %w", err)
	}
	return list.Keys, nil
}

// CreateTrustedKey uploads a public key under the given alias. A 409 from
// the platform is surfaced as ErrAliasConflict so callers can resolve it.
func (c *Client) CreateTrustedKey(ctx context.Context, alias, publicKey string) error {
	body, err := json.Marshal(map[string]string{
		"alias":      alias,
		"public_key": publicKey,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+trustedKeysPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("alias %q: %w", alias, ErrAliasConflict)
	default:
		respBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s: %s", resp.Status, string(respBytes))
	}
}

// DeleteTrustedKey removes a trusted key by its platform-assigned kid.
func (c *Client) DeleteTrustedKey(ctx context.Context, kid string) error {
	target := c.BaseURL + trustedKeysPath + "/" + url.PathEscape(kid)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s: %s", resp.Status, string(respBytes))
	}
	return nil
}
