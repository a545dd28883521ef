package creds

import (
	"errors"
	"fmt"
	"time"
)

// EnvCache names the environment variable exporting the working cache name
// to supervised children and post-renewal helper programs.
const EnvCache = "RENEWD_CCACHE"

// ErrCacheUnavailable marks any failure to open, read, or interpret a
// credential cache. Wrapped errors carry the underlying reason.
var ErrCacheUnavailable = errors.New("credential cache unavailable")

// Credential is one ticket held in a cache. The token payload is opaque to
// renewd; only the timing metadata and the principal are interpreted here.
type Credential struct {
	Principal      string    `json:"principal"`
	Service        string    `json:"service"`
	Token          []byte    `json:"token"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	RenewableUntil time.Time `json:"renewable_until"`
}

// Remaining reports how much validity the credential has left at now.
func (c Credential) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

func unavailable(msg string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCacheUnavailable, msg, err)
	}
	return fmt.Errorf("%w: %s", ErrCacheUnavailable, msg)
}
