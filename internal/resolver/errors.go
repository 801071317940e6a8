package resolver

import "errors"

var (
	// ErrConflictUnresolved reports that the service rejected a create for a
	// duplicate display name, yet a follow-up filtered list found no resource
	// with that display name. The conflict cannot be reconciled here; the
	// caller must treat resolution as failed.
	ErrConflictUnresolved = errors.New("resource reported as existing but not found")

	// ErrAmbiguousResource reports that more than one resource shares the
	// display name under the parent container. Display names are supposed to
	// be unique per parent; the resolver refuses to guess which resource is
	// canonical.
	ErrAmbiguousResource = errors.New("multiple resources share one display name")
)
