package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"saas host", "https://acme.jfrog.io", "https://acme.jfrog.io", false},
		{"trailing slash stripped", "https://acme.jfrog.io/", "https://acme.jfrog.io", false},
		{"self hosted", "https://artifactory.internal.example.com", "https://artifactory.internal.example.com", false},
		{"http rejected", "http://acme.jfrog.io", "", true},
		{"bare hostname rejected", "acme.jfrog.io", "", true},
		{"no dot rejected", "https://localhost", "", true},
		{"path rejected", "https://acme.jfrog.io/artifactory", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// testClient points a Client at an httptest server. The URL validation in
// NewClient rejects http:// test server addresses, so build the client by hand.
func testClient(ts *httptest.Server, token string) *Client {
	return &Client{
		BaseURL:    ts.URL,
		AdminToken: token,
		HTTPClient: ts.Client(),
		Logger:     discardLogger(),
	}
}

func TestClientPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pingPath, r.URL.Path)
		w.Write([]byte("OK"))
	}))
	defer ts.Close()

	require.NoError(t, testClient(ts, "").Ping(context.Background()))
}

func TestClientPingFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	assert.Error(t, testClient(ts, "").Ping(context.Background()))
}

func TestClientCheckAuth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, versionPath, r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"version": "7.90.1"})
	}))
	defer ts.Close()

	require.NoError(t, testClient(ts, "good-token").CheckAuth(context.Background()))
	assert.Error(t, testClient(ts, "bad-token").CheckAuth(context.Background()))
}

func TestClientListTrustedKeys(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, trustedKeysPath, r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(trustedKeyList{Keys: []TrustedKey{
			{Alias: "evidence", Kid: "abc123"},
		}})
	}))
	defer ts.Close()

	keys, err := testClient(ts, "tok").ListTrustedKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "evidence", keys[0].Alias)
	assert.Equal(t, "abc123", keys[0].Kid)
}

func TestClientCreateTrustedKeyConflict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "evidence", body["alias"])
		assert.NotEmpty(t, body["public_key"])
		w.WriteHeader(http.StatusConflict)
	}))
	defer ts.Close()

	err := testClient(ts, "tok").CreateTrustedKey(context.Background(), "evidence", "-----BEGIN PUBLIC KEY-----")
	assert.ErrorIs(t, err, ErrAliasConflict)
}

func TestClientCreateTrustedKeyServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"invalid key"}]}`))
	}))
	defer ts.Close()

	err := testClient(ts, "tok").CreateTrustedKey(context.Background(), "evidence", "junk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestClientDeleteTrustedKey(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	require.NoError(t, testClient(ts, "tok").DeleteTrustedKey(context.Background(), "abc123"))
	assert.Equal(t, trustedKeysPath+"/abc123", gotPath)
}
