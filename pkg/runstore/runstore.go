// Package runstore keeps a history of optimization runs.
//
// Every finished or interrupted optimization can be recorded with its
// parameters, efforts and resulting layout, so that runs can be compared
// and their layouts retrieved later. Backends:
//   - [FileStore]: one JSON file per run, for the CLI
//   - [MongoStore]: a MongoDB collection shared by several machines
//
// Run IDs are random UUIDs.
package runstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one optimization run.
type Record struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`

	Keyboard   string  `json:"keyboard" bson:"keyboard"`
	Layout     string  `json:"layout" bson:"layout"`
	Model      string  `json:"model" bson:"model"`
	Steps      int     `json:"steps" bson:"steps"`
	Seed       uint64  `json:"seed" bson:"seed"`
	Cooling    float64 `json:"cooling" bson:"cooling"`
	Restarts   int     `json:"restarts" bson:"restarts"`
	TriadLimit int     `json:"triad_limit,omitempty" bson:"triad_limit,omitempty"`
	Randomize  bool    `json:"randomize,omitempty" bson:"randomize,omitempty"`
	Pins       string  `json:"pins,omitempty" bson:"pins,omitempty"`

	Triads      int           `json:"triads" bson:"triads"`
	Effort      float64       `json:"effort" bson:"effort"`
	Initial     float64       `json:"initial" bson:"initial"`
	Accepted    int           `json:"accepted" bson:"accepted"`
	Interrupted bool          `json:"interrupted,omitempty" bson:"interrupted,omitempty"`
	Duration    time.Duration `json:"duration" bson:"duration"`

	// Result is the optimized layout as a TOML definition.
	Result string `json:"result" bson:"result"`
}

// NewRecord returns a record with a fresh ID and creation time.
func NewRecord() *Record {
	return &Record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// Improvement is the relative effort reduction of the run.
func (r *Record) Improvement() float64 {
	if r.Initial == 0 {
		return 0
	}
	return (r.Initial - r.Effort) / r.Initial
}

// Store persists run records.
type Store interface {
	// Save stores r, replacing a record with the same ID.
	Save(ctx context.Context, r *Record) error

	// Get returns the record with the given ID or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases resources held by the store.
	Close() error
}
