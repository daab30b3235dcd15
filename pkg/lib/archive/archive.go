// Package archive persists terminal job records.
package archive

import (
	"context"

	"github.com/drericflores/hstp/pkg/lib"
)

var logger = lib.Logger.WithField("component", "archive")

// Store keeps finished job records. Saving a record with an id that is
// already stored replaces it.
type Store interface {
	Save(ctx context.Context, rec lib.Record) error
	Get(ctx context.Context, id string) (lib.Record, error)
	List(ctx context.Context, filter Filter) ([]lib.Record, error)
	Close() error
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Category lib.Category
	State    lib.JobState
	// Limit keeps only the most recent records when positive.
	Limit int
}
