package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the stable classification of a workflow failure. Kinds are
// comparable with errors.Is against any *Error carrying the same kind.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	ErrNotFound             Kind = "not_found"
	ErrInvalidState         Kind = "invalid_state"
	ErrInvalidRack          Kind = "invalid_rack"
	ErrInsufficientCapacity Kind = "insufficient_capacity"
	ErrCapacityExceeded     Kind = "capacity_exceeded"
	ErrOverlapConflict      Kind = "overlap_conflict"
	ErrQuantityMismatch     Kind = "quantity_mismatch"
	ErrCrossTenant          Kind = "cross_tenant_violation"
	ErrDataIntegrity        Kind = "data_integrity_error"
	ErrInvalidInput         Kind = "invalid_input"

	// ErrConflict marks a lost optimistic-concurrency race. It never leaves
	// the coordinator: callers see the retried outcome or ErrCapacityExceeded.
	ErrConflict Kind = "conflict"

	KindInternal Kind = "internal"
)

// Error carries a kind, a human-readable message and enough detail for an
// operator to correct the input.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error

	// Shortfall is the number of units missing for a capacity failure.
	Shortfall int
	// Racks names the racks involved in the failure.
	Racks []string
	// Conflicts lists reservation IDs that collide with the attempted write.
	Conflicts []string
}

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	if e.Msg != "" && e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Kind target, so errors.Is(err, ErrNotFound) works for
// any *Error of that kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// WithOp returns a copy of e annotated with the failing operation.
func (e *Error) WithOp(op string) *Error {
	cp := *e
	cp.Op = op
	return &cp
}

// KindOf returns the kind of the first *Error or Kind in err's chain, or
// KindInternal for anything else.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return KindInternal
}

// Retryable reports whether err is a lost race that may succeed on retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
