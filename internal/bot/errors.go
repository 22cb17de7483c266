package bot

import "errors"

// pollErrorKind classifies a loop-stage failure so backoff is decided by
// kind rather than a blanket recover.
type pollErrorKind int

const (
	// errTransient covers network/exchange hiccups; retried with backoff.
	errTransient pollErrorKind = iota
	// errInvariant covers rejected orders (insufficient balance/position);
	// the order is skipped, the cycle continues at normal cadence.
	errInvariant
	// errPersistence covers disk-write failures; the session continues on
	// in-memory state.
	errPersistence
)

type pollError struct {
	kind pollErrorKind
	err  error
}

func (e *pollError) Error() string { return e.err.Error() }
func (e *pollError) Unwrap() error { return e.err }

func transientErr(err error) error   { return &pollError{kind: errTransient, err: err} }
func invariantErr(err error) error   { return &pollError{kind: errInvariant, err: err} }
func persistenceErr(err error) error { return &pollError{kind: errPersistence, err: err} }

// errKind extracts the classification; unclassified errors count as
// transient, the safest default for a long-running loop.
func errKind(err error) pollErrorKind {
	var pe *pollError
	if errors.As(err, &pe) {
		return pe.kind
	}
	return errTransient
}
