// Package credentials implements the credential store from spec.md §4.J: a
// provider→credential map with a fixed resolution order, and cross-process
// file-lock-guarded OAuth refresh so two concurrent forge processes never
// race on the same refresh token.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Kind distinguishes how a credential authenticates.
type Kind string

const (
	KindAPIKey Kind = "api_key"
	KindOAuth  Kind = "oauth"
)

// Credential is one provider's stored authentication material.
type Credential struct {
	Kind    Kind          `json:"kind"`
	APIKey  string        `json:"api_key,omitempty"`
	OAuth   *oauth2.Token `json:"oauth,omitempty"`
}

// Refresher refreshes an OAuth token for one provider.
type Refresher interface {
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// FallbackResolver is consulted last, after env vars, for providers with a
// platform-specific discovery mechanism (e.g. a CLI-managed keychain entry).
type FallbackResolver func(provider string) (Credential, bool)

// Store resolves and persists credentials per provider.
//
// Resolution order for Resolve (spec.md §4.J): a per-call runtime override,
// then a stored API key, then a stored (and if needed refreshed) OAuth
// token, then an environment variable, then Fallback.
type Store struct {
	mu   sync.Mutex
	path string

	overrides map[string]string
	stored    map[string]Credential
	envVars   map[string][]string
	fallback  FallbackResolver

	refreshers map[string]Refresher
}

// Open loads the credential file at path, creating its parent directory
// (0700) if needed; a missing file yields an empty store, and the file is
// first written (0600, since it may contain OAuth refresh tokens) by
// Store, Remove or a token refresh.
func Open(path string) (*Store, error) {
	s := &Store{
		path:       path,
		overrides:  make(map[string]string),
		stored:     make(map[string]Credential),
		envVars:    make(map[string][]string),
		refreshers: make(map[string]Refresher),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("credentials: create dir: %w", err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: read: %w", err)
	}
	if err := json.Unmarshal(data, &s.stored); err != nil {
		return nil, fmt.Errorf("credentials: parse: %w", err)
	}
	return s, nil
}

// SetOverride installs a runtime-only API key that takes priority over
// everything stored, for the lifetime of this Store.
func (s *Store) SetOverride(provider, apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[provider] = apiKey
}

// SetEnvVars registers the environment variable names checked for provider,
// in priority order.
func (s *Store) SetEnvVars(provider string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envVars[provider] = names
}

// SetFallback installs the last-resort resolver.
func (s *Store) SetFallback(f FallbackResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = f
}

// SetRefresher registers the OAuth refresher for provider.
func (s *Store) SetRefresher(provider string, r Refresher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshers[provider] = r
}

// Store persists a credential for provider to disk.
func (s *Store) Store(provider string, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored[provider] = cred
	return s.persistLocked()
}

// Remove deletes the stored credential for provider.
func (s *Store) Remove(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stored, provider)
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Resolve returns the API key (or a refreshed OAuth access token) to use
// for provider, walking spec.md §4.J's resolution order.
func (s *Store) Resolve(ctx context.Context, provider string) (string, error) {
	s.mu.Lock()
	if override, ok := s.overrides[provider]; ok {
		s.mu.Unlock()
		return override, nil
	}
	cred, hasCred := s.stored[provider]
	envVars := s.envVars[provider]
	refresher := s.refreshers[provider]
	s.mu.Unlock()

	if hasCred && cred.Kind == KindAPIKey && cred.APIKey != "" {
		return cred.APIKey, nil
	}

	if hasCred && cred.Kind == KindOAuth && cred.OAuth != nil {
		token, err := s.resolveOAuth(ctx, provider, cred.OAuth, refresher)
		if err != nil {
			return "", err
		}
		return token.AccessToken, nil
	}

	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}

	s.mu.Lock()
	fallback := s.fallback
	s.mu.Unlock()
	if fallback != nil {
		if cred, ok := fallback(provider); ok {
			if cred.Kind == KindAPIKey {
				return cred.APIKey, nil
			}
		}
	}

	return "", fmt.Errorf("credentials: no credential available for %q", provider)
}

// resolveOAuth refreshes token if expired, guarded by a cross-process file
// lock so two forge processes sharing one credential file never both
// refresh the same token (a refresh token is typically single-use).
func (s *Store) resolveOAuth(ctx context.Context, provider string, token *oauth2.Token, refresher Refresher) (*oauth2.Token, error) {
	if token.Valid() {
		return token, nil
	}
	if refresher == nil {
		return nil, fmt.Errorf("credentials: %q token expired and no refresher registered", provider)
	}

	lockPath := s.path + "." + provider + ".lock"
	unlock, err := acquireFileLock(ctx, lockPath, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("credentials: acquire refresh lock: %w", err)
	}
	defer unlock()

	// Re-read from disk: another process may have refreshed while we waited
	// for the lock.
	s.mu.Lock()
	if data, rerr := os.ReadFile(s.path); rerr == nil {
		var onDisk map[string]Credential
		if json.Unmarshal(data, &onDisk) == nil {
			if cred, ok := onDisk[provider]; ok && cred.OAuth != nil && cred.OAuth.Valid() {
				s.stored[provider] = cred
				s.mu.Unlock()
				return cred.OAuth, nil
			}
		}
	}
	if cred, ok := s.stored[provider]; ok && cred.OAuth != nil && cred.OAuth.Valid() {
		s.mu.Unlock()
		return cred.OAuth, nil
	}
	s.mu.Unlock()

	refreshed, err := refresher.Refresh(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("credentials: refresh %q: %w", provider, err)
	}

	s.mu.Lock()
	s.stored[provider] = Credential{Kind: KindOAuth, OAuth: refreshed}
	persistErr := s.persistLocked()
	s.mu.Unlock()
	if persistErr != nil {
		return nil, fmt.Errorf("credentials: persist refreshed token: %w", persistErr)
	}
	return refreshed, nil
}

// acquireFileLock blocks (with retry+jitter, per spec.md §4.J) until it
// creates lockPath exclusively, ctx is done, or 10 attempts have failed. A
// lock file older than staleAfter is treated as abandoned (e.g. the holder
// crashed) and removed.
func acquireFileLock(ctx context.Context, lockPath string, staleAfter time.Duration) (unlock func(), err error) {
	const maxAttempts = 10
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleAfter {
			os.Remove(lockPath)
			continue
		}

		delay := backoffDelay(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("credentials: timed out acquiring lock %q", lockPath)
}

func backoffDelay(attempt int) time.Duration {
	base := 100 * math.Pow(2, float64(attempt-1))
	capped := math.Min(base, 10_000)
	jitter := capped * 0.3 * rand.Float64() // #nosec G404 -- lock retry jitter only
	return time.Duration(capped+jitter) * time.Millisecond
}
