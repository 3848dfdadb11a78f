package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredErrorsUnwrapToSentinels(t *testing.T) {
	assert.ErrorIs(t, &SoldOutError{FlightID: 1}, ErrSoldOut)
	assert.ErrorIs(t, FlightNotFound(7), ErrNotFound)
	assert.ErrorIs(t, BookingNotFound("ABC123"), ErrNotFound)
	assert.ErrorIs(t, &AlreadyCancelledError{PNR: "ABC123", Status: BookingStatusCancelled}, ErrAlreadyCancelled)
	assert.ErrorIs(t, &PNRExhaustedError{Attempts: 5}, ErrPNRExhausted)
}

func TestPersistence(t *testing.T) {
	cause := errors.New("connection reset")

	err := Persistence("insert booking", cause)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "insert booking: connection reset", err.Error())

	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "insert booking", pe.Op)

	assert.Nil(t, Persistence("noop", nil))

	soldOut := fmt.Errorf("book: %w", &SoldOutError{FlightID: 3})
	assert.Same(t, soldOut, Persistence("book", soldOut))
	assert.False(t, errors.Is(Persistence("book", soldOut), ErrPersistence))

	assert.Same(t, err, Persistence("outer", err))
}

func TestIsBusinessError(t *testing.T) {
	assert.True(t, IsBusinessError(&SoldOutError{}))
	assert.True(t, IsBusinessError(FlightNotFound(1)))
	assert.True(t, IsBusinessError(&AlreadyCancelledError{}))
	assert.True(t, IsBusinessError(fmt.Errorf("name: %w", ErrInvalidInput)))
	assert.False(t, IsBusinessError(&PNRExhaustedError{}))
	assert.False(t, IsBusinessError(errors.New("boom")))
}
