package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewBookingRepository(pool)
	assert.NotNil(t, repo)
}

// rowQuerier answers every QueryRow with one canned row.
type rowQuerier struct {
	row     pgx.Row
	lastSQL string
}

func (q *rowQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not used")
}

func (q *rowQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (q *rowQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.lastSQL = sql
	return q.row
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		case *domain.BookingStatus:
			*p = r.values[i].(domain.BookingStatus)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestPGBookingRepository_GetByPNR(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	q := &rowQuerier{row: fakeRow{values: []any{
		int64(1), int64(42), int64(3), "K7QX2M", "577.50", domain.BookingStatusConfirmed, "Ivan Petrov", at, at,
	}}}
	repo := NewBookingRepository(q)

	b, err := repo.GetByPNR(context.Background(), "K7QX2M")
	require.NoError(t, err)
	assert.Equal(t, "577.50", b.PricePaid.StringFixed(2))
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	assert.Contains(t, q.lastSQL, "price_paid::text")
}

func TestPGBookingRepository_GetByPNR_Errors(t *testing.T) {
	repo := NewBookingRepository(&rowQuerier{row: fakeRow{err: pgx.ErrNoRows}})
	_, err := repo.GetByPNR(context.Background(), "NOPE22")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	repo = NewBookingRepository(&rowQuerier{row: fakeRow{err: &pgconn.PgError{Code: pgSerializationFailure}}})
	_, err = repo.GetByPNR(context.Background(), "K7QX2M")
	assert.ErrorIs(t, err, ErrConflict)

	at := time.Now()
	repo = NewBookingRepository(&rowQuerier{row: fakeRow{values: []any{
		int64(1), int64(42), int64(3), "K7QX2M", "not-a-number", domain.BookingStatusConfirmed, "Ivan", at, at,
	}}})
	_, err = repo.GetByPNR(context.Background(), "K7QX2M")
	assert.Error(t, err)
}
