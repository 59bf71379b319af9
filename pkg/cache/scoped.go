package cache

// ScopedKeyer wraps a Keyer with a prefix, separating the entries of
// several users of one shared cache.
//
// Example usage:
//
//	// keys of the HTTP server do not mix with CLI keys in a shared redis
//	serverKeyer := NewScopedKeyer(NewDefaultKeyer(), "server:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// StatsKey generates a prefixed key for triad counts.
func (k *ScopedKeyer) StatsKey(corpusHash string, opts StatsKeyOpts) string {
	return k.prefix + k.inner.StatsKey(corpusHash, opts)
}

// ResultKey generates a prefixed key for optimization results.
func (k *ScopedKeyer) ResultKey(triadsHash string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(triadsHash, opts)
}
