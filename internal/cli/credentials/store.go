// Package credentials stores tuplremotectl's server URL and bearer token
// between invocations, the way the teacher's dittofsctl credential store
// does — trimmed to a single active context, since this layer's auth
// model has no per-user login, only one shared admin bearer token.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tupldb/remote/internal/config"
)

// ErrNotLoggedIn indicates no stored credentials exist.
var ErrNotLoggedIn = errors.New("not logged in - run 'tuplremotectl login' first")

const fileName = "tuplremotectl.yaml"

// Context holds the server and bearer token tuplremotectl talks with.
type Context struct {
	ServerURL string    `yaml:"server_url"`
	Token     string    `yaml:"token"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

// IsExpired reports whether Token is past ExpiresAt, with a small grace
// window so a token doesn't expire mid-request.
func (c *Context) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(30 * time.Second).After(c.ExpiresAt)
}

// Store persists a single Context to disk, alongside the server's own
// config directory.
type Store struct {
	path string
	ctx  *Context
}

// Load reads the stored context, returning an empty Store if none exists
// yet.
func Load() (*Store, error) {
	path := filepath.Join(config.Dir(), fileName)
	s := &Store{path: path, ctx: &Context{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("credentials: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s.ctx); err != nil {
		return nil, fmt.Errorf("credentials: parse %s: %w", path, err)
	}
	return s, nil
}

// Current returns the stored context, or ErrNotLoggedIn if empty.
func (s *Store) Current() (*Context, error) {
	if s.ctx.ServerURL == "" || s.ctx.Token == "" {
		return nil, ErrNotLoggedIn
	}
	return s.ctx, nil
}

// Save stores ctx, overwriting whatever was there before.
func (s *Store) Save(ctx *Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("credentials: create dir: %w", err)
	}
	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("credentials: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("credentials: write: %w", err)
	}
	s.ctx = ctx
	return nil
}

// Clear removes the stored context (logout).
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credentials: remove: %w", err)
	}
	s.ctx = &Context{}
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}
