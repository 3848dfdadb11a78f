package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors, match with errors.Is.
var (
	// ErrSoldOut is returned when a flight has no seat left. Expected and user-facing.
	ErrSoldOut = errors.New("no seats available")

	// ErrNotFound is returned for an unknown flight or PNR.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyCancelled is returned when a booking is not in a cancellable state.
	ErrAlreadyCancelled = errors.New("booking is not cancellable")

	// ErrPNRExhausted is an internal fault: every generated PNR collided.
	ErrPNRExhausted = errors.New("pnr generation exhausted")

	// ErrPersistence wraps any failure of the underlying store.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

type SoldOutError struct {
	FlightID int64
}

func (e *SoldOutError) Error() string {
	return fmt.Sprintf("flight %d: no seats available", e.FlightID)
}

func (e *SoldOutError) Unwrap() error {
	return ErrSoldOut
}

type NotFoundError struct {
	Kind string // "flight" or "booking"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func FlightNotFound(id int64) error {
	return &NotFoundError{Kind: "flight", Key: fmt.Sprint(id)}
}

func BookingNotFound(pnr string) error {
	return &NotFoundError{Kind: "booking", Key: pnr}
}

type AlreadyCancelledError struct {
	PNR    string
	Status BookingStatus
}

func (e *AlreadyCancelledError) Error() string {
	return fmt.Sprintf("booking %s is %s", e.PNR, e.Status)
}

func (e *AlreadyCancelledError) Unwrap() error {
	return ErrAlreadyCancelled
}

type PNRExhaustedError struct {
	Attempts int
}

func (e *PNRExhaustedError) Error() string {
	return fmt.Sprintf("could not allocate a unique pnr after %d attempts", e.Attempts)
}

func (e *PNRExhaustedError) Unwrap() error {
	return ErrPNRExhausted
}

// PersistenceError carries the failed operation and the store error.
// errors.Is matches both ErrPersistence and the cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Persistence wraps err unless it already is a business error or a PersistenceError.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsBusinessError(err) || errors.Is(err, ErrPersistence) || errors.Is(err, ErrPNRExhausted) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsBusinessError reports rule violations that are returned to the caller as-is
// and never retried.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrSoldOut) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrInvalidInput)
}
