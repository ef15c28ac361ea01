package errorsx

import (
	"errors"
	"fmt"
)

// reasoned tags an error chain with a ReasonCode. The concrete type stays
// unexported; callers only see the Reason/HasReason accessors.
type reasoned struct {
	err    error
	reason ReasonCode
}

func (e *reasoned) Error() string { return e.err.Error() }

func (e *reasoned) Unwrap() error { return e.err }

// Wrap tags err with reason. A nil err stays nil; an err already carrying
// a reason keeps the one closest to where it happened.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	if Reason(err) != ReasonUnknown {
		return err
	}
	return &reasoned{err: err, reason: reason}
}

// Errorf builds a reason-tagged error from a format string. %w wraps as in
// fmt.Errorf, so sentinel checks with errors.Is keep working.
func Errorf(reason ReasonCode, format string, args ...any) error {
	return &reasoned{err: fmt.Errorf(format, args...), reason: reason}
}

// Reason returns the reason closest to the failure site, or ReasonUnknown
// when err carries none.
func Reason(err error) ReasonCode {
	var re *reasoned
	if errors.As(err, &re) {
		return re.reason
	}
	return ReasonUnknown
}

// HasReason reports whether err carries the given reason.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
