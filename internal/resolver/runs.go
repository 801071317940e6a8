// Package resolver maps logical run and tag names to tracking API resource
// names, creating resources on first use and memoizing the results for the
// resolver's lifetime.
//
// Two independent uploaders may race to create the same logically-named
// resource; the service rejects the loser's create, and the resolver
// reconciles by listing with an exact display-name filter. Within one
// process, concurrent lookups for the same unresolved key share a single
// in-flight create.
package resolver

import (
	"context"
	"errors"

	"github.com/mansiachuthan/runboard/internal/platform/id"
	"github.com/mansiachuthan/runboard/internal/tracking"
)

// RunResolver resolves logical run names to run resource names under one
// fixed parent experiment. Safe for concurrent use.
type RunResolver struct {
	svc        tracking.Service
	experiment string
	cache      *refCache
}

// NewRunResolver creates a resolver bound to the given experiment resource
// name.
func NewRunResolver(svc tracking.Service, experiment string) (*RunResolver, error) {
	if svc == nil {
		return nil, errors.New("tracking service is required")
	}
	if err := tracking.ValidateExperimentName(experiment); err != nil {
		return nil, err
	}
	return &RunResolver{
		svc:        svc,
		experiment: experiment,
		cache:      newRefCache(),
	}, nil
}

// Resolve returns the resource name of the run, creating it under the parent
// experiment when absent. A name resolved once resolves to the same resource
// name for the resolver's lifetime without further remote calls.
func (r *RunResolver) Resolve(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.New("run name is required")
	}
	return r.cache.resolve(ctx, name, func(ctx context.Context) (string, error) {
		run, err := r.createOrGet(ctx, name)
		if err != nil {
			return "", err
		}
		return run.Name, nil
	})
}

func (r *RunResolver) createOrGet(ctx context.Context, name string) (*tracking.Run, error) {
	return createOrGet(ctx, name,
		func(ctx context.Context) (tracking.CreateResult[tracking.Run], error) {
			// A fresh random id token keeps a retried create from colliding
			// on the service's id-uniqueness check; only the display name can
			// conflict.
			runID, err := id.New()
			if err != nil {
				return tracking.CreateResult[tracking.Run]{}, err
			}
			return r.svc.CreateRun(ctx, r.experiment, runID, &tracking.Run{DisplayName: name})
		},
		func(ctx context.Context, filter string) ([]*tracking.Run, error) {
			return r.svc.ListRuns(ctx, r.experiment, filter)
		},
	)
}
