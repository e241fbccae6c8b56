package repoconfig

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/time/rate"
)

func testGitHubStore(t *testing.T, handler http.Handler) (*GitHubStore, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	store, err := NewGitHubStore(GitHubConfig{
		Token:   "test-token",
		BaseURL: ts.URL,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	store.HTTPClient = ts.Client()
	store.limiter = rate.NewLimiter(rate.Inf, 0) // no throttling in tests
	return store, ts
}

func TestNewGitHubStoreRequiresToken(t *testing.T) {
	_, err := NewGitHubStore(GitHubConfig{})
	assert.Error(t, err)
}

func TestSetSecretSealsValue(t *testing.T) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var putBody struct {
		EncryptedValue string `json:"encrypted_value"`
		KeyID          string `json:"key_id"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/checkout-service/actions/secrets/public-key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(repoPublicKey{
			KeyID: "key-1",
			Key:   base64.StdEncoding.EncodeToString(pub[:]),
		})
	})
	mux.HandleFunc("PUT /repos/acme/checkout-service/actions/secrets/JFROG_ADMIN_TOKEN", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
		w.WriteHeader(http.StatusCreated)
	})

	store, _ := testGitHubStore(t, mux)
	require.NoError(t, store.SetSecret(context.Background(), "acme/checkout-service", "JFROG_ADMIN_TOKEN", "s3cret"))

	assert.Equal(t, "key-1", putBody.KeyID)
	sealed, err := base64.StdEncoding.DecodeString(putBody.EncryptedValue)
	require.NoError(t, err)
	opened, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	require.True(t, ok, "sealed box must open with the repo private key")
	assert.Equal(t, "s3cret", string(opened))
}

func TestSetVariableCreateThenUpdateOnConflict(t *testing.T) {
	posts, patches := 0, 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/web/actions/variables", func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(http.StatusConflict)
	})
	mux.HandleFunc("PATCH /repos/acme/web/actions/variables/JFROG_URL", func(w http.ResponseWriter, r *http.Request) {
		patches++
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://acme.jfrog.io", body["value"])
		w.WriteHeader(http.StatusNoContent)
	})

	store, _ := testGitHubStore(t, mux)
	require.NoError(t, store.SetVariable(context.Background(), "acme/web", "JFROG_URL", "https://acme.jfrog.io"))
	assert.Equal(t, 1, posts)
	assert.Equal(t, 1, patches)
}

func TestGetVariable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/web/actions/variables/JFROG_URL", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "JFROG_URL", "value": "https://acme.jfrog.io"})
	})

	store, _ := testGitHubStore(t, mux)
	got, err := store.GetVariable(context.Background(), "acme/web", "JFROG_URL")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.jfrog.io", got)

	_, err = store.GetVariable(context.Background(), "acme/web", "MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteVariableMissingIsNotAnError(t *testing.T) {
	store, _ := testGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	assert.NoError(t, store.DeleteVariable(context.Background(), "acme/web", "GONE"))
	assert.NoError(t, store.DeleteSecret(context.Background(), "acme/web", "GONE"))
}

func TestRepoExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/web", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1}`))
	})
	mux.HandleFunc("GET /repos/acme/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	store, _ := testGitHubStore(t, mux)
	ok, err := store.RepoExists(context.Background(), "acme/web")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.RepoExists(context.Background(), "acme/gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDryRunStorePerformsNoWrites(t *testing.T) {
	backing := NewMemoryStore()
	backing.AddRepo("acme/web")
	require.NoError(t, backing.SetVariable(context.Background(), "acme/web", "JFROG_URL", "https://old.jfrog.io"))

	dry := NewDryRunStore(backing, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	require.NoError(t, dry.SetVariable(ctx, "acme/web", "JFROG_URL", "https://new.jfrog.io"))
	require.NoError(t, dry.SetSecret(ctx, "acme/web", "JFROG_ADMIN_TOKEN", "tok"))
	require.NoError(t, dry.DeleteVariable(ctx, "acme/web", "JFROG_URL"))

	// Backing store untouched; reads pass through.
	got, err := dry.GetVariable(ctx, "acme/web", "JFROG_URL")
	require.NoError(t, err)
	assert.Equal(t, "https://old.jfrog.io", got)
	assert.Equal(t, 0, backing.SecretCount("acme/web"))
}
