package credentials

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	serviceName    = "platformctl"
	githubTokenKey = "github-token"
)

// Manager performs GitHub device-flow login and serves the stored token.
type Manager struct {
	Keyring  Keyring
	ClientID string
	Logger   *slog.Logger
}

// NewManager wires a Manager over the given keyring.
func NewManager(keyring Keyring, clientID string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{Keyring: keyring, ClientID: clientID, Logger: logger}
}

func (m *Manager) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: m.ClientID,
		Scopes:   []string{"repo"},
		Endpoint: github.Endpoint,
	}
}

// Login runs the GitHub device flow and stores the resulting token in the
// keyring. The verification URL and user code are printed for the operator.
func (m *Manager) Login(ctx context.Context) error {
	if m.ClientID == "" {
		return fmt.Errorf("a GitHub OAuth client ID is required for login")
	}
	cfg := m.oauthConfig()

	deviceCode, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to request device code: %w", err)
	}
	fmt.Printf("Please visit %s and enter the code: %s\n", deviceCode.VerificationURI, deviceCode.UserCode)
	fmt.Println("Waiting for the authentication to complete...")

	token, err := cfg.DeviceAccessToken(ctx, deviceCode)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}
	if err := m.Keyring.Set(serviceName, githubTokenKey, token.AccessToken); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	m.Logger.Info("GitHub token stored in OS keyring")
	return nil
}

// Logout removes the stored token.
func (m *Manager) Logout() error {
	return m.Keyring.Delete(serviceName, githubTokenKey)
}

// GithubToken returns the explicit token when given, otherwise the keyring
// entry. Flag/env always wins so CI can bypass the keyring entirely.
func (m *Manager) GithubToken(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	token, err := m.Keyring.Get(serviceName, githubTokenKey)
	if err != nil {
		return "", fmt.Errorf("no GitHub token: pass --github-token, set GITHUB_TOKEN, or run 'platformctl auth login': %w", err)
	}
	return token, nil
}
