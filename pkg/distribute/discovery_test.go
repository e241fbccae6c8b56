package distribute

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demostack/platformctl/pkg/repoconfig"
)

func TestFilterExisting(t *testing.T) {
	store := repoconfig.NewMemoryStore()
	store.AddRepo("acme/web")
	store.AddRepo("acme/checkout-service")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repos, err := FilterExisting(context.Background(), store, "acme",
		[]string{"web", "retired-service", "checkout-service"}, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/web", "acme/checkout-service"}, repos)
}

func TestFilterExistingAcceptsFullIdentifiers(t *testing.T) {
	store := repoconfig.NewMemoryStore()
	store.AddRepo("otherorg/shared-charts")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repos, err := FilterExisting(context.Background(), store, "acme",
		[]string{"otherorg/shared-charts"}, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"otherorg/shared-charts"}, repos)
}

func TestFilterExistingEmptyResultIsFatal(t *testing.T) {
	store := repoconfig.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := FilterExisting(context.Background(), store, "acme", []string{"ghost"}, logger)
	assert.ErrorIs(t, err, ErrNoRepositories)
}
