// Package cache provides byte caches for expensive keyforge results.
//
// Counting triads over a large corpus and long optimization runs are both
// worth reusing. Results are serialized by the caller and stored under keys
// built by a [Keyer], which hashes everything the result depends on.
//
// Backends:
//   - [FileCache]: one JSON file per entry, for the CLI
//   - [RedisCache]: shared cache for servers and multiple machines
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values with an optional expiration.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Default expirations.
const (
	// TTLStats is the lifetime of cached triad counts. They only depend on the
	// corpus content and the layout, so they are kept long.
	TTLStats = 30 * 24 * time.Hour

	// TTLResult is the lifetime of cached optimization results.
	TTLResult = 7 * 24 * time.Hour
)

// Keyer builds cache keys.
type Keyer interface {
	// StatsKey is the key for the triad counts of a corpus typed on a layout.
	StatsKey(corpusHash string, opts StatsKeyOpts) string

	// ResultKey is the key for an optimization result.
	ResultKey(triadsHash string, opts ResultKeyOpts) string
}

// StatsKeyOpts lists what triad counts depend on besides the corpus.
type StatsKeyOpts struct {
	Keyboard     string `json:"keyboard"`
	KeyboardHash string `json:"keyboard_hash"`
	LayoutHash   string `json:"layout"`
}

// ResultKeyOpts lists what an optimization result depends on besides the
// triads.
//
// Keyboards and models may come from files, so their hashes cover the
// definitions and not just the names.
type ResultKeyOpts struct {
	Keyboard     string  `json:"keyboard"`
	KeyboardHash string  `json:"keyboard_hash"`
	LayoutHash   string  `json:"layout"`
	Model        string  `json:"model"`
	ModelHash    string  `json:"model_hash"`
	Steps        int     `json:"steps"`
	Seed         uint64  `json:"seed"`
	Cooling      float64 `json:"cooling"`
	Restarts     int     `json:"restarts"`
	TriadLimit   int     `json:"triad_limit"`
	Randomize    bool    `json:"randomize"`
	Pins         string  `json:"pins"`
}

// DefaultKeyer builds keys of the form "kind:sha256(parts)".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// StatsKey implements Keyer.
func (DefaultKeyer) StatsKey(corpusHash string, opts StatsKeyOpts) string {
	return hashKey("stats", corpusHash, opts)
}

// ResultKey implements Keyer.
func (DefaultKeyer) ResultKey(triadsHash string, opts ResultKeyOpts) string {
	return hashKey("result", triadsHash, opts)
}
