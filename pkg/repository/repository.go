package repository

import (
	"context"
	"time"

	"github.com/m-mizutani/giji/pkg/model"
)

// Repository defines the interface for export manifest persistence
type Repository interface {
	// Save writes the export and returns the stored path
	Save(ctx context.Context, export *model.Export) (string, error)

	// Load retrieves a stored export by session ID
	Load(ctx context.Context, id model.SessionID) (*model.Export, error)

	// List returns the stored session IDs in lexicographic order
	List(ctx context.Context) ([]model.SessionID, error)

	// Delete removes a stored export, reporting whether one existed
	Delete(ctx context.Context, id model.SessionID) (bool, error)

	// Prune removes exports created more than maxAgeDays before now and
	// returns the removed session IDs in lexicographic order. Unreadable
	// files are skipped so a corrupt document cannot stall the sweep.
	Prune(ctx context.Context, maxAgeDays int, now time.Time) ([]model.SessionID, error)
}
