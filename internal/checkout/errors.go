package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means no payment processor is configured. It is fatal:
	// monetization should be switched off rather than retried.
	ErrConfiguration = errors.New("checkout: payment processor not configured")

	// ErrCheckoutInitiationFailed is recoverable; nothing was persisted.
	ErrCheckoutInitiationFailed = errors.New("checkout: initiation failed")

	// ErrFinalizationAmbiguous means the return could not be tied to a known
	// charge with payer, payee and amount. The result is inconclusive.
	ErrFinalizationAmbiguous = errors.New("checkout: finalization ambiguous")
)

// ValidationError rejects a request before any processor call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
