package trustedkeys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demostack/platformctl/pkg/platform"
)

// fakeKeyAPI scripts the platform trusted-key store and counts calls.
type fakeKeyAPI struct {
	keys []platform.TrustedKey

	conflictPosts int  // number of leading CreateTrustedKey calls answered with 409
	dropUploads   bool // accept POST but never list the key (silent failure)

	posts   int
	deletes int
	lists   int
}

func (f *fakeKeyAPI) ListTrustedKeys(ctx context.Context) ([]platform.TrustedKey, error) {
	f.lists++
	return f.keys, nil
}

func (f *fakeKeyAPI) CreateTrustedKey(ctx context.Context, alias, publicKey string) error {
	f.posts++
	if f.posts <= f.conflictPosts {
		return fmt.Errorf("alias %q: %w", alias, platform.ErrAliasConflict)
	}
	if !f.dropUploads {
		f.keys = append(f.keys, platform.TrustedKey{Alias: alias, Kid: fmt.Sprintf("kid-%d", f.posts)})
	}
	return nil
}

func (f *fakeKeyAPI) DeleteTrustedKey(ctx context.Context, kid string) error {
	f.deletes++
	kept := f.keys[:0]
	for _, k := range f.keys {
		if k.Kid != kid {
			kept = append(kept, k)
		}
	}
	f.keys = kept
	return nil
}

func newTestPublisher(api KeyAPI) *Publisher {
	p := NewPublisher(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.sleep = func(time.Duration) {}
	return p
}

func TestEnsureFreshAlias(t *testing.T) {
	api := &fakeKeyAPI{}
	err := newTestPublisher(api).Ensure(context.Background(), "evidence", "PUBKEY")
	require.NoError(t, err)
	assert.Equal(t, 1, api.posts)
	assert.Equal(t, 0, api.deletes)
}

func TestEnsureResolvesConflictWithOneDelete(t *testing.T) {
	api := &fakeKeyAPI{
		conflictPosts: 1,
		keys:          []platform.TrustedKey{{Alias: "evidence", Kid: "old-kid"}},
	}
	err := newTestPublisher(api).Ensure(context.Background(), "evidence", "PUBKEY")
	require.NoError(t, err)
	// Exactly one delete and two posts, per the replace contract.
	assert.Equal(t, 2, api.posts)
	assert.Equal(t, 1, api.deletes)
}

func TestEnsureSecondConflictIsTerminal(t *testing.T) {
	api := &fakeKeyAPI{
		conflictPosts: 2,
		keys:          []platform.TrustedKey{{Alias: "evidence", Kid: "old-kid"}},
	}
	err := newTestPublisher(api).Ensure(context.Background(), "evidence", "PUBKEY")
	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrAliasConflict)
	assert.Equal(t, 2, api.posts)
	assert.Equal(t, 1, api.deletes)
}

func TestEnsureConflictWithoutListedKidFails(t *testing.T) {
	api := &fakeKeyAPI{conflictPosts: 1} // conflict reported, nothing listed
	err := newTestPublisher(api).Ensure(context.Background(), "evidence", "PUBKEY")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistentStore)
	assert.Equal(t, 0, api.deletes)
}

func TestEnsureDetectsSilentFailure(t *testing.T) {
	api := &fakeKeyAPI{dropUploads: true}
	err := newTestPublisher(api).Ensure(context.Background(), "evidence", "PUBKEY")
	require.Error(t, err)
	var silent *SilentFailureError
	require.True(t, errors.As(err, &silent))
	assert.Equal(t, "evidence", silent.Alias)
}

func TestEnsureSurfacesUploadError(t *testing.T) {
	api := &fakeKeyAPI{}
	p := newTestPublisher(&failingCreateAPI{fakeKeyAPI: api})
	err := p.Ensure(context.Background(), "evidence", "PUBKEY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

type failingCreateAPI struct {
	*fakeKeyAPI
}

func (f *failingCreateAPI) CreateTrustedKey(ctx context.Context, alias, publicKey string) error {
	return errors.New("boom")
}
