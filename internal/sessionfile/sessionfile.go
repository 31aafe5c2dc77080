// Package sessionfile handles reading and writing the persisted session file.
// The session file stores the bearer credentials issued by the identity
// service alongside a cached user profile. This is a leaf package with no
// internal dependencies so both the CLI and identity/ can import it freely.
package sessionfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FilePerms restricts session files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the session directory.
const DirPerms = 0o700

// Subscription plan values reported by the identity service.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// QuotaSnapshot is the last known request quota. It may be stale; the live
// value comes from the usage endpoint.
type QuotaSnapshot struct {
	RequestsRemaining int       `json:"requestsRemaining"`
	RequestsLimit     int       `json:"requestsLimit"`
	ResetDate         time.Time `json:"resetDate"`
}

// UserProfile is the identity service's view of the account that owns the
// session.
type UserProfile struct {
	ID                string        `json:"id"`
	Email             string        `json:"email"`
	Name              string        `json:"name"`
	SubscriptionPlan  string        `json:"subscriptionPlan"`
	HasOwnProviderKey bool          `json:"hasOwnProviderKey"`
	Quota             QuotaSnapshot `json:"quota"`
}

// Session is the on-disk format for the session file: opaque bearer
// credentials plus the cached user profile. RefreshToken is empty for
// API-key sessions, which are never refreshed.
type Session struct {
	UserID       string      `json:"userId"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	User         UserProfile `json:"user"`
}

// Expired reports whether the access token must not be used after applying
// the given skew window. A session expiring within the window counts as
// expired so callers never race a token that lapses mid-request.
func (s *Session) Expired(skew time.Duration) bool {
	return !time.Now().Add(skew).Before(s.ExpiresAt)
}

// Load reads the session file from disk. Returns (nil, nil) if the file does
// not exist or cannot be parsed — a corrupt session is treated the same as
// never having logged in, so callers are never forced to handle a half-broken
// file differently from a missing one.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not logged in"
	}

	if err != nil {
		return nil, fmt.Errorf("sessionfile: reading %s: %w", path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// Malformed file reads as absent; the next login rewrites it whole.
		return nil, nil //nolint:nilnil // sentinel for "not logged in"
	}

	if s.AccessToken == "" {
		return nil, nil //nolint:nilnil // sentinel for "not logged in"
	}

	return &s, nil
}

// Save writes the session file to disk atomically (write-to-temp + rename)
// with 0600 permissions, creating parent directories as needed.
// Never logs token values.
func Save(path string, s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("sessionfile: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("sessionfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	// Clean up temp file on any error path.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	// On platforms without POSIX permission bits chmod is a no-op rather
	// than an error; the session is still written, owner-only enforcement
	// is a documented platform caveat.
	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionfile: writing: %w", err)
	}

	// Flush to stable storage before rename so a power loss between close
	// and rename cannot leave an empty or partial session file at the final
	// path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sessionfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("sessionfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Delete removes the session file. A missing file is not an error — logout
// of an already-logged-out session is a no-op.
func Delete(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("sessionfile: removing %s: %w", path, err)
	}

	return nil
}

// Store binds the package functions to a fixed path so consumers hold one
// value instead of threading the path everywhere. It is the sole owner of
// the session file: grants and the lifecycle manager only ever go through it.
type Store struct {
	Path string
}

// Read returns the stored session, or nil if absent or unreadable.
func (st Store) Read() (*Session, error) { return Load(st.Path) }

// Write replaces the stored session in full.
func (st Store) Write(s *Session) error { return Save(st.Path, s) }

// Delete removes the stored session.
func (st Store) Delete() error { return Delete(st.Path) }
