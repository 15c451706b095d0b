package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_HidesInternalDetails(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"SQL error", `pq: relation "cows" does not exist`, genericError},
		{"file path", "open /var/lib/data/secret.json: no such file", genericError},
		{"connection error", "dial tcp 192.168.1.100:5432: connection refused", genericError},
		{"safe validation error", "purchase_price must be >= 0", "purchase_price must be >= 0"},
		{"safe invariant message", "depreciation entry_date after disposition date", "depreciation entry_date after disposition date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestClassification(t *testing.T) {
	base := errors.New("disposition already exists for cow")
	err := InvariantViolation("single_disposition_per_cow", base)

	assert.True(t, Is(err, ClassInvariantViolation))
	assert.False(t, Is(err, ClassNotFound))
	assert.Equal(t, "single_disposition_per_cow: disposition already exists for cow", err.Error())
	assert.Equal(t, base, errors.Unwrap(err))
}

func TestIs_UnwrapsWrappedErrors(t *testing.T) {
	base := NotFound(errors.New("cow not found"))
	wrapped := errorsWrap("loading cow", base)

	assert.True(t, Is(wrapped, ClassNotFound))
}

type wrapErr struct {
	msg   string
	cause error
}

func (w *wrapErr) Error() string { return w.msg + ": " + w.cause.Error() }
func (w *wrapErr) Unwrap() error { return w.cause }

func errorsWrap(msg string, cause error) error {
	return &wrapErr{msg: msg, cause: cause}
}
