package renew

import (
	"time"

	"github.com/loykin/renewd/internal/creds"
)

// ExpireFudge is added to the expiry check so the daemon never wakes up
// just as the ticket dies.
const ExpireFudge = 2 * time.Minute

// CheckStatus is the carried-over state of the ticket between cycles.
type CheckStatus int

const (
	// CheckOK: the ticket outlives the next wake, no action needed.
	CheckOK CheckStatus = iota
	// CheckExpiring: the ticket will expire before the next wake but is
	// still renewable.
	CheckExpiring
	// CheckNotRenewable: the ticket will expire and its renewable lifetime
	// ends too soon to help.
	CheckNotRenewable
	// CheckUnavailable: the cache could not be read.
	CheckUnavailable
)

// Check inspects the cache's primary credential and decides whether a
// renewal is needed before the next wake. interval is how long until then;
// happy, when positive, is the happy-ticket threshold and replaces the
// fixed fudge.
//
// The returned error carries the reason for CheckUnavailable and is nil
// otherwise; callers that only gate on the status may ignore it.
func Check(cacheName string, interval, happy time.Duration) (CheckStatus, error) {
	c, err := creds.Resolve(cacheName)
	if err != nil {
		return CheckUnavailable, err
	}
	defer func() { _ = c.Close() }()
	cr, err := c.Primary()
	if err != nil {
		return CheckUnavailable, err
	}
	offset := interval + ExpireFudge
	if happy > 0 {
		offset = interval + happy
	}
	deadline := time.Now().Add(offset)
	if cr.ExpiresAt.After(deadline) {
		return CheckOK, nil
	}
	// Only consult the renewable window for a ticket that actually needs
	// renewing, so a long-lived non-renewable ticket still counts as happy.
	if cr.RenewableUntil.Before(deadline) {
		return CheckNotRenewable, nil
	}
	return CheckExpiring, nil
}

func (s CheckStatus) String() string {
	switch s {
	case CheckOK:
		return "ok"
	case CheckExpiring:
		return "expiring"
	case CheckNotRenewable:
		return "not_renewable"
	case CheckUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}
