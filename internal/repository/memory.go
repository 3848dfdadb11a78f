package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
)

// MemoryStore keeps the ledger in process memory. One mutex serializes every
// operation, so it is only meant for tests and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

type memState struct {
	flights       map[int64]domain.Flight
	bookings      map[int64]domain.Booking
	pnrs          map[string]int64
	cancellations []domain.CancelledBooking
	archivedPNRs  map[string]bool
	nextFlightID  int64
	nextBookingID int64
	nextCancelID  int64
	faults        map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			flights:      make(map[int64]domain.Flight),
			bookings:     make(map[int64]domain.Booking),
			pnrs:         make(map[string]int64),
			archivedPNRs: make(map[string]bool),
			faults:       make(map[string]error),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// FailNext makes the next call of the named Tx or repository method return
// err. Used to exercise rollback paths.
func (m *MemoryStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.faults[op] = err
}

func (m *MemoryStore) Flights() FlightRepository   { return memFlights{m} }
func (m *MemoryStore) Bookings() BookingRepository { return memBookings{m} }

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

// WithTx snapshots the state and restores it if fn fails.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(ctx, &memTx{state: m.state, now: m.now}); err != nil {
		faults := m.state.faults
		m.state = snapshot
		m.state.faults = faults
		return err
	}
	if err := ctx.Err(); err != nil {
		faults := m.state.faults
		m.state = snapshot
		m.state.faults = faults
		return err
	}
	return nil
}

func (s *memState) clone() *memState {
	c := &memState{
		flights:       make(map[int64]domain.Flight, len(s.flights)),
		bookings:      make(map[int64]domain.Booking, len(s.bookings)),
		pnrs:          make(map[string]int64, len(s.pnrs)),
		cancellations: append([]domain.CancelledBooking(nil), s.cancellations...),
		archivedPNRs:  make(map[string]bool, len(s.archivedPNRs)),
		nextFlightID:  s.nextFlightID,
		nextBookingID: s.nextBookingID,
		nextCancelID:  s.nextCancelID,
		faults:        s.faults,
	}
	for k, v := range s.flights {
		c.flights[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.pnrs {
		c.pnrs[k] = v
	}
	for k, v := range s.archivedPNRs {
		c.archivedPNRs[k] = v
	}
	return c
}

func (s *memState) fault(op string) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

// =============================================================================
// Tx
// =============================================================================

type memTx struct {
	state *memState
	now   func() time.Time
}

func (t *memTx) GetFlight(_ context.Context, id int64) (*domain.Flight, error) {
	f, ok := t.state.flights[id]
	if !ok {
		return nil, ErrFlightNotFound
	}
	return &f, nil
}

func (t *memTx) ReserveSeat(_ context.Context, flightID int64) (*domain.Flight, error) {
	if err := t.state.fault("ReserveSeat"); err != nil {
		return nil, err
	}
	f, ok := t.state.flights[flightID]
	if !ok || f.SeatsRemaining <= 0 {
		return nil, nil
	}
	before := f
	f.SeatsRemaining--
	f.UpdatedAt = t.now()
	t.state.flights[flightID] = f
	return &before, nil
}

func (t *memTx) ReleaseSeat(_ context.Context, flightID int64) (bool, error) {
	if err := t.state.fault("ReleaseSeat"); err != nil {
		return false, err
	}
	f, ok := t.state.flights[flightID]
	if !ok || f.SeatsRemaining >= f.TotalSeats {
		return false, nil
	}
	f.SeatsRemaining++
	f.UpdatedAt = t.now()
	t.state.flights[flightID] = f
	return true, nil
}

func (t *memTx) PNRExists(_ context.Context, pnr string) (bool, error) {
	_, live := t.state.pnrs[pnr]
	return live || t.state.archivedPNRs[pnr], nil
}

func (t *memTx) InsertBooking(_ context.Context, b *domain.Booking) error {
	if err := t.state.fault("InsertBooking"); err != nil {
		return err
	}
	if _, taken := t.state.pnrs[b.PNR]; taken || t.state.archivedPNRs[b.PNR] {
		return ErrDuplicatePNR
	}
	t.state.nextBookingID++
	b.ID = t.state.nextBookingID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = t.now()
	}
	b.UpdatedAt = b.CreatedAt
	t.state.bookings[b.ID] = *b
	t.state.pnrs[b.PNR] = b.ID
	return nil
}

func (t *memTx) GetBookingForUpdate(_ context.Context, pnr string) (*domain.Booking, error) {
	id, ok := t.state.pnrs[pnr]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b := t.state.bookings[id]
	return &b, nil
}

func (t *memTx) UpdateBookingStatus(_ context.Context, id int64, from, to domain.BookingStatus) (bool, error) {
	if err := t.state.fault("UpdateBookingStatus"); err != nil {
		return false, err
	}
	b, ok := t.state.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = t.now()
	t.state.bookings[id] = b
	return true, nil
}

func (t *memTx) InsertCancellation(_ context.Context, c *domain.CancelledBooking) error {
	if err := t.state.fault("InsertCancellation"); err != nil {
		return err
	}
	if t.state.archivedPNRs[c.PNR] {
		return ErrDuplicatePNR
	}
	t.state.nextCancelID++
	c.ID = t.state.nextCancelID
	t.state.cancellations = append(t.state.cancellations, *c)
	t.state.archivedPNRs[c.PNR] = true
	return nil
}

var _ Tx = (*memTx)(nil)

// =============================================================================
// Repositories
// =============================================================================

type memFlights struct{ m *MemoryStore }

func (r memFlights) List(context.Context) ([]domain.Flight, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	flights := make([]domain.Flight, 0, len(r.m.state.flights))
	for _, f := range r.m.state.flights {
		flights = append(flights, f)
	}
	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })
	return flights, nil
}

func (r memFlights) GetByID(_ context.Context, id int64) (*domain.Flight, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.state.flights[id]
	if !ok {
		return nil, ErrFlightNotFound
	}
	return &f, nil
}

func (r memFlights) CompareAndSetDemandFactor(_ context.Context, id int64, prev, next float64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if err := r.m.state.fault("CompareAndSetDemandFactor"); err != nil {
		return false, err
	}
	f, ok := r.m.state.flights[id]
	if !ok || f.DemandFactor != prev {
		return false, nil
	}
	f.DemandFactor = next
	f.UpdatedAt = r.m.now()
	r.m.state.flights[id] = f
	return true, nil
}

func (r memFlights) Upsert(_ context.Context, f *domain.Flight) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if err := validateCatalogFlight(f); err != nil {
		return err
	}
	now := r.m.now()
	for id, existing := range r.m.state.flights {
		if existing.FlightNumber != f.FlightNumber {
			continue
		}
		existing.Airline = f.Airline
		existing.Origin = f.Origin
		existing.Destination = f.Destination
		existing.BasePrice = f.BasePrice
		existing.DepartureTime = f.DepartureTime
		existing.UpdatedAt = now
		r.m.state.flights[id] = existing
		*f = existing
		return nil
	}

	r.m.state.nextFlightID++
	f.ID = r.m.state.nextFlightID
	if f.DemandFactor == 0 {
		f.DemandFactor = domain.DefaultDemandFactor
	}
	f.CreatedAt, f.UpdatedAt = now, now
	r.m.state.flights[f.ID] = *f
	return nil
}

type memBookings struct{ m *MemoryStore }

func (r memBookings) GetByPNR(_ context.Context, pnr string) (*domain.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	id, ok := r.m.state.pnrs[pnr]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b := r.m.state.bookings[id]
	return &b, nil
}

func (r memBookings) ListByUser(_ context.Context, userID int64, status domain.BookingStatus) ([]domain.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := make([]domain.Booking, 0)
	for _, b := range r.m.state.bookings {
		if b.UserID == userID && (status == "" || b.Status == status) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r memBookings) ListCancellationsByUser(_ context.Context, userID int64) ([]domain.CancelledBooking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := make([]domain.CancelledBooking, 0)
	for _, c := range r.m.state.cancellations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CancelledAt.Equal(out[j].CancelledAt) {
			return out[i].CancelledAt.After(out[j].CancelledAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r memBookings) CountByFlight(_ context.Context, flightID int64, status domain.BookingStatus) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	n := 0
	for _, b := range r.m.state.bookings {
		if b.FlightID == flightID && b.Status == status {
			n++
		}
	}
	return n, nil
}

func validateCatalogFlight(f *domain.Flight) error {
	switch {
	case f.FlightNumber == "":
		return fmt.Errorf("flight number is required: %w", domain.ErrInvalidInput)
	case f.TotalSeats <= 0:
		return fmt.Errorf("flight %s: total seats must be positive: %w", f.FlightNumber, domain.ErrInvalidInput)
	case f.SeatsRemaining < 0 || f.SeatsRemaining > f.TotalSeats:
		return fmt.Errorf("flight %s: seats remaining outside [0,%d]: %w", f.FlightNumber, f.TotalSeats, domain.ErrInvalidInput)
	case f.BasePrice.IsNegative():
		return fmt.Errorf("flight %s: negative base price: %w", f.FlightNumber, domain.ErrInvalidInput)
	case f.DemandFactor < 0:
		return fmt.Errorf("flight %s: negative demand factor: %w", f.FlightNumber, domain.ErrInvalidInput)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
