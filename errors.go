package symcanon

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ============================================================
// Errors
// ============================================================

// Misuse of the construction, differentiation or assignment APIs is a
// programmer error and panics with one of the values below. Catch turns such
// a panic back into an error at boundaries that must not crash.

var (
	ErrConstruction        = errors.New("symcanon: invalid node construction")
	ErrInvalidDiffTarget   = errors.New("symcanon: cannot differentiate with respect to a constant")
	ErrInvalidAssignTarget = errors.New("symcanon: cannot assign a value to a compound expression")
	ErrNonConvergent       = errors.New("symcanon: canonicalization did not converge")
)

// ConstructionError describes a node that violates its kind's invariants.
type ConstructionError struct {
	Kind   Kind
	Reason string
	// Index is the offending operand, or -1 when the whole operand list is at fault.
	Index int
}

func (e *ConstructionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("symcanon: %s operand %d: %s", e.Kind, e.Index, e.Reason)
	}
	return fmt.Sprintf("symcanon: %s: %s", e.Kind, e.Reason)
}

func (e *ConstructionError) Unwrap() error { return ErrConstruction }

// NonConvergenceError reports a fixed-point loop that hit its iteration cap.
type NonConvergenceError struct {
	Stage      string
	Iterations int
	Last       string
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("symcanon: %s did not reach a fixed point after %d iterations (last form %q)",
		e.Stage, e.Iterations, e.Last)
}

func (e *NonConvergenceError) Unwrap() error { return ErrNonConvergent }

// fail logs err and panics with it, annotated with the caller's stack.
func fail(err error) {
	logger().Error("symbolic operation rejected", zap.Error(err))
	panic(errors.WithStack(err))
}

// Catch runs fn and converts a symcanon panic into a returned error. Panics
// carrying anything else are re-raised. The error keeps the stack of the
// panic site; print it with %+v.
func Catch(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok && isSymcanonError(e) {
			err = e
			return
		}
		panic(r)
	}()
	fn()
	return nil
}

func isSymcanonError(err error) bool {
	return errors.Is(err, ErrConstruction) ||
		errors.Is(err, ErrInvalidDiffTarget) ||
		errors.Is(err, ErrInvalidAssignTarget) ||
		errors.Is(err, ErrNonConvergent)
}
