package repoconfig

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/time/rate"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubStore implements Store against the GitHub Actions secrets/variables
// REST API. Secret values are sealed client-side with the repository's
// libsodium public key before upload.
type GitHubStore struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger

	limiter *rate.Limiter

	mu      sync.Mutex
	pubKeys map[string]repoPublicKey // repo -> sealing key, fetched once per run
}

type repoPublicKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"`
}

// GitHubConfig configures a GitHubStore.
type GitHubConfig struct {
	Token   string
	BaseURL string
	Logger  *slog.Logger
}

// NewGitHubStore returns a store talking to the GitHub API with a modest
// client-side rate limit so long fan-outs stay under the API's abuse limits.
func NewGitHubStore(cfg GitHubConfig) (*GitHubStore, error) {
	if cfg.Token == "" {
		return nil, errors.New("a GitHub token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGitHubAPI
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GitHubStore{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Token:      cfg.Token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     cfg.Logger,
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		pubKeys:    make(map[string]repoPublicKey),
	}, nil
}

// apiError carries the status code so callers can branch on 404/409.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("github api error: %d: %s", e.Status, e.Body)
}

func (s *GitHubStore) doJSON(ctx context.Context, method, path string, in, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBytes, _ := io.ReadAll(resp.Body)
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBytes))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// SetSecret seals the value with the repository public key (libsodium sealed
// box, what the GitHub API requires) and uploads it. Overwrites are
// idempotent.
func (s *GitHubStore) SetSecret(ctx context.Context, repo, name, value string) error {
	key, err := s.sealingKey(ctx, repo)
	if err != nil {
		return err
	}
	sealed, err := sealSecret(value, key.Key)
	if err != nil {
		return fmt.Errorf("failed to seal secret %s: %w", name, err)
	}
	payload := map[string]string{
		"encrypted_value": sealed,
		"key_id":          key.KeyID,
	}
	if err := s.doJSON(ctx, http.MethodPut, "/repos/"+repo+"/actions/secrets/"+name, payload, nil); err != nil {
		return fmt.Errorf("failed to set secret %s on %s: %w", name, repo, err)
	}
	return nil
}

// SetVariable creates the variable and falls back to an update when it
// already exists (the API answers 409 for duplicates).
func (s *GitHubStore) SetVariable(ctx context.Context, repo, name, value string) error {
	payload := map[string]string{"name": name, "value": value}
	err := s.doJSON(ctx, http.MethodPost, "/repos/"+repo+"/actions/variables", payload, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		err = s.doJSON(ctx, http.MethodPatch, "/repos/"+repo+"/actions/variables/"+name, payload, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to set variable %s on %s: %w", name, repo, err)
	}
	return nil
}

// GetVariable reads a variable back; absent variables map to ErrNotFound.
func (s *GitHubStore) GetVariable(ctx context.Context, repo, name string) (string, error) {
	var out struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	err := s.doJSON(ctx, http.MethodGet, "/repos/"+repo+"/actions/variables/"+name, nil, &out)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return "", fmt.Errorf("variable %s on %s: %w", name, repo, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get variable %s on %s: %w", name, repo, err)
	}
	return out.Value, nil
}

// DeleteSecret removes a secret; 404 counts as already deleted.
func (s *GitHubStore) DeleteSecret(ctx context.Context, repo, name string) error {
	err := s.doJSON(ctx, http.MethodDelete, "/repos/"+repo+"/actions/secrets/"+name, nil, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// DeleteVariable removes a variable; 404 counts as already deleted.
func (s *GitHubStore) DeleteVariable(ctx context.Context, repo, name string) error {
	err := s.doJSON(ctx, http.MethodDelete, "/repos/"+repo+"/actions/variables/"+name, nil, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// RepoExists probes the repository; 404 means missing or inaccessible.
func (s *GitHubStore) RepoExists(ctx context.Context, repo string) (bool, error) {
	err := s.doJSON(ctx, http.MethodGet, "/repos/"+repo, nil, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GitHubStore) sealingKey(ctx context.Context, repo string) (repoPublicKey, error) {
	s.mu.Lock()
	key, ok := s.pubKeys[repo]
	s.mu.Unlock()
	if ok {
		return key, nil
	}
	if err := s.doJSON(ctx, http.MethodGet, "/repos/"+repo+"/actions/secrets/public-key", nil, &key); err != nil {
		return repoPublicKey{}, fmt.Errorf("failed to fetch sealing key for %s: %w", repo, err)
	}
	s.mu.Lock()
	s.pubKeys[repo] = key
	s.mu.Unlock()
	return key, nil
}

// sealSecret encrypts plaintext with an anonymous NaCl sealed box, compatible
// with libsodium's crypto_box_seal used by the GitHub secrets API.
func sealSecret(plaintext, b64PublicKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64PublicKey)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("unexpected public key length: %d (want 32)", len(raw))
	}
	var pk [32]byte
	copy(pk[:], raw)
	sealed, err := box.SealAnonymous(nil, []byte(plaintext), &pk, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("seal secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

var _ Store = (*GitHubStore)(nil)
