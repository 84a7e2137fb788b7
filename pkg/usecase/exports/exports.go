// Package exports manages stored meeting records: persisting live sessions
// as export manifests, rendering and restoring them, and sweeping old
// documents under the retention policy.
package exports

import (
	"time"

	"github.com/m-mizutani/giji/pkg/adapter"
	"github.com/m-mizutani/giji/pkg/policy"
	"github.com/m-mizutani/giji/pkg/repository"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
)

// UseCase is the exports usecase
type UseCase struct {
	store   *capture.Store
	repo    repository.Repository
	archive adapter.Storage
	insight adapter.Insight
	policy  *policy.Engine
	clock   func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithArchive mirrors every stored export to an object storage bucket
func WithArchive(archive adapter.Storage) Option {
	return func(x *UseCase) {
		x.archive = archive
	}
}

// WithInsight records an analytics row for every stored export
func WithInsight(insight adapter.Insight) Option {
	return func(x *UseCase) {
		x.insight = insight
	}
}

// WithPolicy attaches the engine consulted for privacy redactions on store
// and retention exemptions on prune
func WithPolicy(engine *policy.Engine) Option {
	return func(x *UseCase) {
		x.policy = engine
	}
}

// WithClock overrides the time source used for retention cutoffs
func WithClock(clock func() time.Time) Option {
	return func(x *UseCase) {
		x.clock = clock
	}
}

// New creates a new exports usecase
func New(store *capture.Store, repo repository.Repository, opts ...Option) *UseCase {
	uc := &UseCase{
		store: store,
		repo:  repo,
		clock: time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
