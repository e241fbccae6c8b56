// Package trustedkeys ensures an alias on the platform's trusted-key store
// maps to a given public key, resolving alias conflicts by deleting the
// existing record and retrying once.
package trustedkeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/demostack/platformctl/pkg/platform"
)

// ErrInconsistentStore means the platform reported an alias conflict but the
// conflicting record could not be found when listing keys.
var ErrInconsistentStore = errors.New("trusted-key store reported a conflict for an alias it does not list")

// SilentFailureError is returned when the upload call reported success but a
// follow-up listing does not contain the alias. It is distinct from an HTTP
// error because the caller was told the operation worked.
type SilentFailureError struct {
	Alias string
}

func (e *SilentFailureError) Error() string {
	return fmt.Sprintf("trusted key %q not present after upload reported success", e.Alias)
}

// KeyAPI is the slice of the platform client the publisher needs.
type KeyAPI interface {
	ListTrustedKeys(ctx context.Context) ([]platform.TrustedKey, error)
	CreateTrustedKey(ctx context.Context, alias, publicKey string) error
	DeleteTrustedKey(ctx context.Context, kid string) error
}

// Publisher uploads trusted keys idempotently.
type Publisher struct {
	API    KeyAPI
	Logger *slog.Logger

	// VerifyDelay covers the platform's eventual-consistency lag between a
	// successful upload and the key showing up in listings.
	VerifyDelay time.Duration

	sleep func(time.Duration)
}

// NewPublisher returns a publisher with a 2s verification delay.
func NewPublisher(api KeyAPI, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		API:         api,
		Logger:      logger,
		VerifyDelay: 2 * time.Second,
		sleep:       time.Sleep,
	}
}

// Ensure makes alias map to publicKey on the platform. On an alias conflict
// the existing record is located by kid, deleted, and the upload retried
// exactly once; a second conflict is terminal. After a successful upload the
// alias must appear in the key listing or a SilentFailureError is returned.
func (p *Publisher) Ensure(ctx context.Context, alias, publicKey string) error {
	err := p.API.CreateTrustedKey(ctx, alias, publicKey)
	if errors.Is(err, platform.ErrAliasConflict) {
		p.Logger.Info("trusted key alias already exists, replacing", "alias", alias)
		if err := p.replace(ctx, alias, publicKey); err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("trusted key upload failed: %w", err)
	}
	return p.verify(ctx, alias)
}

func (p *Publisher) replace(ctx context.Context, alias, publicKey string) error {
	kid, err := p.lookupKid(ctx, alias)
	if err != nil {
		return err
	}
	p.Logger.Info("deleting existing trusted key", "alias", alias, "kid", kid)
	if err := p.API.DeleteTrustedKey(ctx, kid); err != nil {
		return fmt.Errorf("failed to delete conflicting trusted key %q: %w", kid, err)
	}

	err = p.API.CreateTrustedKey(ctx, alias, publicKey)
	if errors.Is(err, platform.ErrAliasConflict) {
		// One delete-and-retry only; a second conflict means the store keeps
		// resurrecting the alias and looping would never terminate.
		return fmt.Errorf("alias %q still conflicts after delete and retry: %w", alias, err)
	}
	if err != nil {
		return fmt.Errorf("trusted key re-upload failed: %w", err)
	}
	return nil
}

func (p *Publisher) lookupKid(ctx context.Context, alias string) (string, error) {
	keys, err := p.API.ListTrustedKeys(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list trusted keys: %w", err)
	}
	for _, k := range keys {
		if k.Alias == alias {
			return k.Kid, nil
		}
	}
	return "", fmt.Errorf("alias %q: %w", alias, ErrInconsistentStore)
}

func (p *Publisher) verify(ctx context.Context, alias string) error {
	p.sleep(p.VerifyDelay)
	keys, err := p.API.ListTrustedKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify trusted key upload: %w", err)
	}
	for _, k := range keys {
		if k.Alias == alias {
			p.Logger.Info("trusted key verified", "alias", alias, "kid", k.Kid)
			return nil
		}
	}
	return &SilentFailureError{Alias: alias}
}
