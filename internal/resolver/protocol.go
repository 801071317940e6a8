package resolver

import (
	"context"
	"fmt"

	"github.com/mansiachuthan/runboard/internal/tracking"
)

// createOrGet reconciles racing creations against a service that enforces
// display-name uniqueness but offers no atomic create-if-absent primitive.
// It attempts the create first; on a display-name conflict it lists with an
// exact display-name filter and adopts the single match. Zero matches after
// a reported conflict is ErrConflictUnresolved, more than one is
// ErrAmbiguousResource. Any other create or list failure propagates
// unchanged.
func createOrGet[R any](
	ctx context.Context,
	displayName string,
	create func(context.Context) (tracking.CreateResult[R], error),
	list func(context.Context, string) ([]*R, error),
) (*R, error) {
	res, err := create(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Conflict {
		return res.Resource, nil
	}

	matches, err := list(ctx, tracking.DisplayNameFilter(displayName))
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("display name %q: %w", displayName, ErrConflictUnresolved)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("display name %q has %d matches: %w", displayName, len(matches), ErrAmbiguousResource)
	}
}
