package credentials

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/stretchr/testify/require"
)

func TestResolveOverrideBeatsEverything(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "creds.json"))
	require.NoError(t, err)
	require.NoError(t, s.Store("anthropic", Credential{Kind: KindAPIKey, APIKey: "stored-key"}))
	s.SetOverride("anthropic", "override-key")

	key, err := s.Resolve(context.Background(), "anthropic")
	require.NoError(t, err)
	require.Equal(t, "override-key", key)
}

func TestResolveFallsBackToEnvVar(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "env-key")
	s, err := Open(filepath.Join(t.TempDir(), "creds.json"))
	require.NoError(t, err)
	s.SetEnvVars("testprovider", "TEST_PROVIDER_KEY")

	key, err := s.Resolve(context.Background(), "testprovider")
	require.NoError(t, err)
	require.Equal(t, "env-key", key)
}

func TestResolveRefreshesExpiredOAuthToken(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "creds.json"))
	require.NoError(t, err)

	expired := &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)}
	require.NoError(t, s.Store("anthropic", Credential{Kind: KindOAuth, OAuth: expired}))

	s.SetRefresher("anthropic", refresherFunc(func(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "new", Expiry: time.Now().Add(time.Hour)}, nil
	}))

	key, err := s.Resolve(context.Background(), "anthropic")
	require.NoError(t, err)
	require.Equal(t, "new", key)
}

func TestResolveErrorsWithNoCredential(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "creds.json"))
	require.NoError(t, err)
	_, err = s.Resolve(context.Background(), "unknown")
	require.Error(t, err)
}

type refresherFunc func(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)

func (f refresherFunc) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	return f(ctx, token)
}
