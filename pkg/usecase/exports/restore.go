package exports

import (
	"context"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/utils/logging"
)

// Restore rebuilds a live session from a stored export, replacing any live
// session with the same ID.
func (x *UseCase) Restore(ctx context.Context, id model.SessionID) (*model.Session, error) {
	export, err := x.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	session := x.store.Restore(export)
	logging.From(ctx).Info("session restored from export",
		"sessionID", id,
		"segments", len(session.Segments),
	)
	return session, nil
}

// Delete removes a stored export, reporting whether one existed.
func (x *UseCase) Delete(ctx context.Context, id model.SessionID) (bool, error) {
	return x.repo.Delete(ctx, id)
}
