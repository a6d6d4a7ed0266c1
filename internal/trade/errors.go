package trade

import (
	"errors"
	"fmt"
)

// ValidationError rejects placement input. Nothing has been mutated when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid trade: " + e.Reason
	}
	return fmt.Sprintf("invalid trade: %s %s", e.Field, e.Reason)
}

// PriceUnavailableError is transient; the caller retries on a later cycle.
type PriceUnavailableError struct {
	Symbol string
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("price unavailable for %s", e.Symbol)
}

// PersistenceError wraps a durable-store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AlreadySettledError means a conditional settle found the trade no longer pending.
type AlreadySettledError struct {
	TradeID string
}

func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("trade %s already settled", e.TradeID)
}

// ErrInsufficientBalance is returned by the store when a wallet cannot cover a stake.
var ErrInsufficientBalance = errors.New("insufficient balance")

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPriceUnavailable(err error) bool {
	var p *PriceUnavailableError
	return errors.As(err, &p)
}

func IsAlreadySettled(err error) bool {
	var a *AlreadySettledError
	return errors.As(err, &a)
}
