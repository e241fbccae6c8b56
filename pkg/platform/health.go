package platform

import (
	"context"
	"fmt"
	"log/slog"
)

// HealthChecker runs the pre-flight probes against a target platform before
// any mutation happens: reachability first, then authentication.
type HealthChecker struct {
	Client *Client
	Logger *slog.Logger

	// ContinueOnAuthFailure downgrades a failed auth probe from fatal to a
	// warning. Distribution then proceeds without confirmed platform access,
	// which is only useful in disaster-recovery runs where the GitHub-side
	// configuration must be pushed regardless.
	ContinueOnAuthFailure bool
}

// NewHealthChecker wires a checker for the given client.
func NewHealthChecker(client *Client, logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{Client: client, Logger: logger}
}

// Check probes the platform. Reachability failures are always fatal; auth
// failures are fatal unless ContinueOnAuthFailure is set.
func (h *HealthChecker) Check(ctx context.Context) error {
	h.Logger.Info("checking platform reachability", "url", h.Client.BaseURL)
	if err := h.Client.Ping(ctx); err != nil {
		return fmt.Errorf("platform health check failed: %w", err)
	}

	h.Logger.Info("checking platform authentication")
	if err := h.Client.CheckAuth(ctx); err != nil {
		if h.ContinueOnAuthFailure {
			h.Logger.Warn("authentication check failed, continuing in best-effort mode", "error", err)
			return nil
		}
		return fmt.Errorf("platform authentication check failed: %w", err)
	}
	return nil
}
