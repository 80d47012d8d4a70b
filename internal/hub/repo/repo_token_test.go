package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScopes(t *testing.T) {
	tests := []struct {
		name   string
		scopes []string
		want   string
	}{
		{"sorted and joined", []string{"/read-limited", "/activities/update"}, "/activities/update,/read-limited"},
		{"deduplicated", []string{"/read-limited", "/read-limited"}, "/read-limited"},
		{"trimmed", []string{" /read-limited ", ""}, "/read-limited"},
		{"order independent", []string{"/activities/update", "/read-limited"}, "/activities/update,/read-limited"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeScopes(tt.scopes))
		})
	}
}

func TestGetOrCreateExactScopeMatch(t *testing.T) {
	repo := NewTokenRepo(newTestCtx(t))

	first, created, err := repo.GetOrCreate("u-1", "o-1", []string{"/read-limited", "/activities/update"})
	require.NoError(t, err)
	assert.True(t, created)

	// same set in another order resolves to the same row
	again, created, err := repo.GetOrCreate("u-1", "o-1", []string{"/activities/update", "/read-limited"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	// a subset is a different set, never a substring match
	narrower, created, err := repo.GetOrCreate("u-1", "o-1", []string{"/read-limited"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, narrower.ID)
}

func TestFindByScopesMiss(t *testing.T) {
	repo := NewTokenRepo(newTestCtx(t))
	_, err := repo.FindByScopes("u-1", "o-1", []string{"/read-limited"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindBroaderCoversWantedScopes(t *testing.T) {
	repo := NewTokenRepo(newTestCtx(t))

	token, _, err := repo.GetOrCreate("u-1", "o-1", []string{"/read-limited", "/activities/update"})
	require.NoError(t, err)
	token.AccessToken = "at"
	require.NoError(t, repo.Save(token))

	got, err := repo.FindBroader("u-1", "o-1", []string{"/activities/update"})
	require.NoError(t, err)
	assert.Equal(t, token.ID, got.ID)

	_, err = repo.FindBroader("u-1", "o-1", []string{"/person/update"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindBroaderIgnoresEmptyShells(t *testing.T) {
	repo := NewTokenRepo(newTestCtx(t))

	// shell row awaiting the exchange, no usable access token yet
	_, _, err := repo.GetOrCreate("u-1", "o-1", []string{"/activities/update"})
	require.NoError(t, err)

	_, err = repo.FindBroader("u-1", "o-1", []string{"/activities/update"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidateRemovesToken(t *testing.T) {
	repo := NewTokenRepo(newTestCtx(t))

	token, _, err := repo.GetOrCreate("u-1", "o-1", []string{"/read-limited"})
	require.NoError(t, err)
	token.AccessToken = "at"
	require.NoError(t, repo.Save(token))

	require.NoError(t, repo.Invalidate(token))
	_, err = repo.FindByScopes("u-1", "o-1", []string{"/read-limited"})
	assert.ErrorIs(t, err, ErrNotFound)
}
