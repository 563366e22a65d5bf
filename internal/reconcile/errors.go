package reconcile

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/fabkube/fabkube/internal/cluster"
)

// PermanentError marks a failure the supervisor must not retry: the
// cluster rejected the resource spec, or a job failed terminally.
// Dependents of an entity that failed permanently are Blocked.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent resource error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether the error (or any wrapped error) is a
// PermanentError.
func IsPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

// BlockedError is the synthetic status reason applied to dependents of a
// permanently failed entity. It is a propagated consequence, not a real
// error: the entity was never attempted.
type BlockedError struct {
	Dependency string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by failed dependency %s", e.Dependency)
}

// Blocked creates the blocked reason for a dependent of dep.
func Blocked(dep string) error {
	return &BlockedError{Dependency: dep}
}

// IsBlocked reports whether the error is a BlockedError.
func IsBlocked(err error) bool {
	var berr *BlockedError
	return errors.As(err, &berr)
}

// classify sorts a cluster call error into the taxonomy. API rejections
// of the resource spec are permanent; everything else (timeouts, resets,
// control-plane slowness) is transient and absorbed by the supervisor's
// retry loop.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	if errors.Is(err, cluster.ErrJobFailed) {
		return Permanent(err)
	}
	if apierrors.IsInvalid(err) ||
		apierrors.IsBadRequest(err) ||
		apierrors.IsForbidden(err) ||
		apierrors.IsUnauthorized(err) ||
		apierrors.IsMethodNotSupported(err) {
		return Permanent(err)
	}
	return err
}
