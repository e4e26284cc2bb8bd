package directory

import "errors"

var (
	// ErrBundleNotFound is returned by a BundleSource that has no bundle
	// for the requested version.
	ErrBundleNotFound = errors.New("bundle not found")

	// ErrPaginationCap ends a remote load that kept receiving continuation
	// tokens past the page limit.
	ErrPaginationCap = errors.New("pagination cap reached")

	// ErrNoSource means every configured tier came up empty and there is
	// no remote tier to fall back to.
	ErrNoSource = errors.New("no source has data for version")

	// ErrSnapshotMismatch flags a snapshot that cannot be restored.
	ErrSnapshotMismatch = errors.New("snapshot mismatch")
)
