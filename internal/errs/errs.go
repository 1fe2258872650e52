package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Wrap annotates err while keeping the chain visible to errors.Is/As.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	// The original err rides along as the final %w operand.
	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// WithStack attaches the current goroutine's stack to err unless the chain
// already carries one. Capture once, at the boundary where the error is
// born or recovered; Wrap/Wrapf can still be layered on top.
func WithStack(err error) error {
	if err == nil {
		return nil
	}

	var st *StackError
	if errors.As(err, &st) {
		return err
	}

	return &StackError{cause: err, stack: debug.Stack()}
}

// StackError carries a captured stack alongside its cause.
type StackError struct {
	cause error
	stack []byte
}

func (e *StackError) Error() string { return e.cause.Error() }
func (e *StackError) Unwrap() error { return e.cause }
func (e *StackError) Stack() []byte { return e.stack }

// Loggable renders err for slog as message + unwrap chain, plus the stack
// when one was captured. Usage: slog.Any("err", errs.Loggable(err)).
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

type loggable struct{ err error }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.Any("chain", Chain(l.err)),
	}

	var st *StackError
	if errors.As(l.err, &st) {
		// Stack stays a plain string so JSON handlers emit it verbatim.
		attrs = append(attrs, slog.String("stack", string(st.Stack())))
	}

	return slog.GroupValue(attrs...)
}

// Chain returns the unwrap chain outer-to-inner as strings.
func Chain(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	for e := err; e != nil; e = errors.Unwrap(e) {
		out = append(out, e.Error())
	}
	return out
}
