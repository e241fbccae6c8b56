package runstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndReadFailures(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordFailures("acme", "https://acme.jfrog.io", []string{"acme/web", "acme/checkout-service"}))
	got, err := s.FailedRepos("acme", "https://acme.jfrog.io")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/web", "acme/checkout-service"}, got)
}

func TestRecordsAreScopedPerTarget(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordFailures("acme", "https://acme.jfrog.io", []string{"acme/web"}))
	got, err := s.FailedRepos("acme", "https://other.jfrog.io")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.FailedRepos("otherorg", "https://acme.jfrog.io")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFullSuccessClearsRecord(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordFailures("acme", "https://acme.jfrog.io", []string{"acme/web"}))
	require.NoError(t, s.RecordFailures("acme", "https://acme.jfrog.io", nil))

	got, err := s.FailedRepos("acme", "https://acme.jfrog.io")
	require.NoError(t, err)
	assert.Nil(t, got)
}
