package renew

// Outcome is the closed classification of one renewal attempt. The
// scheduler's error policy branches only on these values; raw credential
// service errors never leave this package unclassified.
type Outcome int

const (
	// Success means the cache now holds freshly renewed credentials.
	Success Outcome = iota
	// TransientFailure is retryable on a later wake.
	TransientFailure
	// PermanentFailure means the renewable lifetime is exhausted or the
	// identity no longer matches; retrying cannot help.
	PermanentFailure
	// CacheUnavailable means the cache itself could not be opened or read.
	CacheUnavailable
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	case CacheUnavailable:
		return "cache_unavailable"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one renewal attempt.
type Result struct {
	Outcome Outcome
	Err     error
}

// Failed reports whether the attempt did not succeed.
func (r Result) Failed() bool { return r.Outcome != Success }
