package domain

import "errors"

// Error taxonomy for refresh cycles and request serving. Adapters wrap these
// sentinels with fmt.Errorf("%w: ...") so callers can classify with errors.Is.
var (
	// ErrUpstreamUnavailable marks transport-level failures reaching the
	// shelter API. Retried only on the next scheduled refresh tick.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamMalformed marks schema violations in an upstream response,
	// including a pagination sequence that cannot terminate.
	ErrUpstreamMalformed = errors.New("upstream response malformed")

	// ErrNormalizationFailed marks a payload that produced zero valid
	// records. The refresh cycle aborts and the previous snapshot stays
	// published.
	ErrNormalizationFailed = errors.New("normalization failed")

	// ErrStoreUnavailable marks an unreachable key-value store. This is the
	// only class that propagates to the request boundary: with no snapshot
	// in memory and no store to warm from, no correct response exists.
	ErrStoreUnavailable = errors.New("store unavailable")
)
