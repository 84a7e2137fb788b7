package exports

import (
	"context"
	"time"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Prune removes exports created more than maxAgeDays ago. Exports the
// retention policy marks as kept are exempt. Returns the removed session
// IDs in lexicographic order.
func (x *UseCase) Prune(ctx context.Context, maxAgeDays int) ([]model.SessionID, error) {
	if maxAgeDays <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "max_age_days must be positive", goerr.V("maxAgeDays", maxAgeDays))
	}

	now := x.clock()
	if x.policy == nil {
		return x.repo.Prune(ctx, maxAgeDays, now)
	}

	cutoff := now.UTC().AddDate(0, 0, -maxAgeDays)
	ids, err := x.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	logger := logging.From(ctx)
	removed := make([]model.SessionID, 0)
	for _, id := range ids {
		export, err := x.repo.Load(ctx, id)
		if err != nil {
			logger.Warn("skipping unreadable export during prune", "sessionID", id, "error", err)
			continue
		}
		if !export.CreatedAt.Before(cutoff) {
			continue
		}

		keep, err := x.policy.RetentionExempt(ctx, export)
		if err != nil {
			return nil, err
		}
		if keep {
			logger.Info("retention policy kept export", "sessionID", id)
			continue
		}

		if _, err := x.repo.Delete(ctx, id); err != nil {
			return nil, err
		}
		removed = append(removed, id)
	}

	return removed, nil
}

// RunRetentionSweeper prunes once at startup and then every interval until
// the context is canceled.
func (x *UseCase) RunRetentionSweeper(ctx context.Context, interval time.Duration, maxAgeDays int) {
	logger := logging.From(ctx)
	sweep := func() {
		removed, err := x.Prune(ctx, maxAgeDays)
		if err != nil {
			logger.Error("retention sweep failed", "error", err)
			return
		}
		if len(removed) > 0 {
			logger.Info("retention sweep removed exports", "count", len(removed), "sessionIDs", removed)
		}
	}

	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
