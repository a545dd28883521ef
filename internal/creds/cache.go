package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const cacheVersion = 1

// document is the on-disk cache layout. The file is owned by exactly one
// process for the duration of a run; permissions are always owner-only.
type document struct {
	Version     int          `json:"version"`
	Principal   string       `json:"principal"`
	Credentials []Credential `json:"credentials"`
}

// Cache is a handle to a named on-disk credential cache. A handle must be
// closed exactly once; operations after Close fail.
type Cache struct {
	name   string
	doc    document
	closed bool
}

// Default returns the cache name used when none is configured: the
// environment export if present, otherwise a per-user file under the
// system temp directory.
func Default() string {
	if name := os.Getenv(EnvCache); name != "" {
		return name
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("renewd_cc_%d", os.Getuid()))
}

// Resolve opens a cache by name. A missing file yields an empty handle so
// the cache can be initialized; an unreadable or malformed file is
// ErrCacheUnavailable.
func Resolve(name string) (*Cache, error) {
	if name == "" {
		name = Default()
	}
	c := &Cache{name: name, doc: document{Version: cacheVersion}}
	b, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, unavailable("cannot read cache "+name, err)
	}
	if err := json.Unmarshal(b, &c.doc); err != nil {
		return nil, unavailable("malformed cache "+name, err)
	}
	if c.doc.Version != cacheVersion {
		return nil, unavailable(fmt.Sprintf("cache %s has unsupported version %d", name, c.doc.Version), nil)
	}
	return c, nil
}

// Name returns the resolvable cache identifier.
func (c *Cache) Name() string { return c.name }

// Principal returns the identity the cache's tickets belong to.
func (c *Cache) Principal() (string, error) {
	if c.closed {
		return "", errors.New("cache handle already closed")
	}
	if c.doc.Principal == "" {
		return "", unavailable("cache "+c.name+" holds no principal", nil)
	}
	return c.doc.Principal, nil
}

// Primary returns the cache's primary credential, the one renewal operates
// on.
func (c *Cache) Primary() (Credential, error) {
	if c.closed {
		return Credential{}, errors.New("cache handle already closed")
	}
	if len(c.doc.Credentials) == 0 {
		return Credential{}, unavailable("cache "+c.name+" holds no credentials", nil)
	}
	return c.doc.Credentials[0], nil
}

// Initialize truncates the cache and rebinds it to principal. Between
// Initialize and the following Store the cache holds no valid credentials;
// there is no cache format here that supports replacing credentials in
// place without unbounded growth, so the window is accepted.
func (c *Cache) Initialize(principal string) error {
	if c.closed {
		return errors.New("cache handle already closed")
	}
	c.doc = document{Version: cacheVersion, Principal: principal}
	return c.flush()
}

// Store appends a credential and writes the cache out.
func (c *Cache) Store(cr Credential) error {
	if c.closed {
		return errors.New("cache handle already closed")
	}
	if c.doc.Principal == "" {
		return unavailable("cache "+c.name+" not initialized", nil)
	}
	if cr.Principal != c.doc.Principal {
		return fmt.Errorf("credential principal %q does not match cache principal %q", cr.Principal, c.doc.Principal)
	}
	c.doc.Credentials = append(c.doc.Credentials, cr)
	return c.flush()
}

// Copy creates a fresh owner-only temporary cache for the same principal,
// copies all credential material into it, and closes the source handle.
// The returned handle refers to the new cache; the caller owns deleting
// its backing file.
func (c *Cache) Copy() (string, *Cache, error) {
	if c.closed {
		return "", nil, errors.New("cache handle already closed")
	}
	f, err := os.CreateTemp("", fmt.Sprintf("renewd_cc_%d_*", os.Getuid()))
	if err != nil {
		return "", nil, unavailable("cannot create temporary cache", err)
	}
	name := f.Name()
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", nil, unavailable("cannot set permissions on "+name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", nil, unavailable("cannot close "+name, err)
	}
	dup := &Cache{name: name, doc: document{
		Version:     cacheVersion,
		Principal:   c.doc.Principal,
		Credentials: append([]Credential(nil), c.doc.Credentials...),
	}}
	if err := dup.flush(); err != nil {
		_ = os.Remove(name)
		return "", nil, unavailable("cannot copy credentials into "+name, err)
	}
	if err := c.Close(); err != nil {
		_ = os.Remove(name)
		return "", nil, err
	}
	return name, dup, nil
}

// Close releases the handle. Calling it twice is an error so leaks of the
// exactly-once contract show up in tests.
func (c *Cache) Close() error {
	if c.closed {
		return errors.New("cache handle already closed")
	}
	c.closed = true
	return nil
}

// Destroy closes the handle and removes the backing file.
func (c *Cache) Destroy() error {
	if err := c.Close(); err != nil {
		return err
	}
	if err := os.Remove(c.name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cannot destroy cache %s: %w", c.name, err)
	}
	return nil
}

// DestroyByName resolves and removes a cache in one step; used during
// shutdown when no handle is open.
func DestroyByName(name string) error {
	c, err := Resolve(name)
	if err != nil {
		return err
	}
	return c.Destroy()
}

func (c *Cache) flush() error {
	b, err := json.Marshal(c.doc)
	if err != nil {
		return fmt.Errorf("cannot encode cache %s: %w", c.name, err)
	}
	if err := os.WriteFile(c.name, b, 0o600); err != nil {
		return unavailable("cannot write cache "+c.name, err)
	}
	return nil
}
