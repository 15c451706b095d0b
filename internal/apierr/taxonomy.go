package apierr

import "fmt"

// Class identifies which bucket of the §7 error taxonomy an error belongs
// to, so callers of the trigger API (§6) can decide whether a retry is
// safe without parsing message text.
type Class string

const (
	ClassNotFound           Class = "not_found"
	ClassInvariantViolation Class = "invariant_violation"
	ClassAlreadyProcessed   Class = "already_processed"
	ClassBalanceFailure     Class = "balance_failure"
	ClassConcurrencyTimeout Class = "concurrency_timeout"
	ClassDataAnomaly        Class = "data_anomaly"
)

// Error is a classified engine error. It wraps an underlying cause while
// exposing a stable, sanitized message safe to return to external callers.
type Error struct {
	Class Class
	Rule  string // for ClassInvariantViolation, a stable machine-checkable rule name
	cause error
}

func (e *Error) Error() string {
	msg := e.cause.Error()
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s", e.Rule, Sanitize(msg))
	}
	return Sanitize(msg)
}

func (e *Error) Unwrap() error { return e.cause }

func newClassed(class Class, rule string, cause error) *Error {
	return &Error{Class: class, Rule: rule, cause: cause}
}

func NotFound(cause error) *Error { return newClassed(ClassNotFound, "", cause) }

// InvariantViolation wraps cause as a rejected write, identifying the rule
// that rejected it by a stable name a caller can branch on without parsing
// the message text.
func InvariantViolation(rule string, cause error) *Error {
	return newClassed(ClassInvariantViolation, rule, cause)
}

func AlreadyProcessed(cause error) *Error { return newClassed(ClassAlreadyProcessed, "", cause) }

func BalanceFailure(cause error) *Error { return newClassed(ClassBalanceFailure, "", cause) }

func ConcurrencyTimeout(cause error) *Error { return newClassed(ClassConcurrencyTimeout, "", cause) }

func DataAnomaly(cause error) *Error { return newClassed(ClassDataAnomaly, "", cause) }

// Is reports whether err is classified as class, unwrapping as needed.
func Is(err error, class Class) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Class == class
}
