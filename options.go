package tiercache

import "time"

// FetchOptions tunes a single Fetch call. All fields are optional; zero
// values resolve against the process-wide defaults.
type FetchOptions struct {
	// TTL is the local-tier time to live for a produced value. The
	// remote tier receives a multiple of it.
	TTL time.Duration
	// MinTrafficCount overrides the admission threshold for this call.
	MinTrafficCount int
	// ForceCaching bypasses admission control entirely.
	ForceCaching bool
}

// TTL is shorthand for options carrying only a time to live.
func TTL(d time.Duration) *FetchOptions {
	return &FetchOptions{TTL: d}
}

// resolveOptions computes the effective ttl, admission threshold and
// force flag for one call.
func (c *Cache) resolveOptions(opts *FetchOptions) (ttl time.Duration, threshold int, force bool) {
	ttl = c.config.DefaultTTL
	if opts != nil && opts.TTL > 0 {
		ttl = opts.TTL
	}
	if ttl > c.config.MaxTTL {
		ttl = c.config.MaxTTL
	}

	threshold = thresholdForTTL(ttl, c.config.DefaultTrafficThreshold)
	if opts != nil && opts.MinTrafficCount > 0 {
		threshold = opts.MinTrafficCount
	}

	force = opts != nil && opts.ForceCaching
	return ttl, threshold, force
}

// thresholdForTTL maps the effective TTL onto an admission threshold.
// Short-lived entries are cheap to cache, so they get an aggressive
// threshold; long-lived ones fall back to the configured default.
func thresholdForTTL(ttl time.Duration, defaultThreshold int) int {
	switch {
	case ttl <= time.Minute:
		return 2
	case ttl <= 10*time.Minute:
		return 5
	default:
		return defaultThreshold
	}
}
