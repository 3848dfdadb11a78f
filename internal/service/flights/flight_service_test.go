package flights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/skyline/internal/clock"
	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/Domenick1991/skyline/internal/pricing"
	"github.com/Domenick1991/skyline/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) CompareAndSetDemandFactor(ctx context.Context, id int64, prev, next float64) (bool, error) {
	args := m.Called(ctx, id, prev, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockFlightRepository) Upsert(ctx context.Context, f *domain.Flight) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	args := m.Called(ctx, flights)
	return args.Error(0)
}

var quotedAt = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newService(repo repository.FlightRepository, cache FlightCache) *FlightService {
	return NewFlightService(repo, cache, pricing.Default(), clock.NewFixed(quotedAt))
}

func sampleFlights() []domain.Flight {
	return []domain.Flight{
		{
			ID:             4,
			FlightNumber:   "SK4",
			Airline:        "Skyline",
			Origin:         "SVO",
			Destination:    "LED",
			BasePrice:      decimal.RequireFromString("550"),
			TotalSeats:     200,
			SeatsRemaining: 150,
			DemandFactor:   1.0,
		},
	}
}

// Тест 1: Получение списка рейсов - кэш пустой
func TestFlightService_List_CacheMiss(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := newService(mockRepo, mockCache)
	ctx := context.Background()
	flights := sampleFlights()

	// Кэш пустой
	mockCache.On("GetFlights", ctx).Return(([]domain.Flight)(nil), nil).Once()
	mockRepo.On("List", ctx).Return(flights, nil).Once()
	mockCache.On("SetFlights", ctx, flights).Return(nil).Once()

	result, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, flights, result)

	mockCache.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

// Тест 2: Получение списка рейсов - данные в кэше
func TestFlightService_List_CacheHit(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := newService(mockRepo, mockCache)
	ctx := context.Background()
	flights := sampleFlights()

	mockCache.On("GetFlights", ctx).Return(flights, nil).Once()

	result, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, flights, result)

	mockCache.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "List")
	mockCache.AssertNotCalled(t, "SetFlights")
}

// Тест 3: Получение списка рейсов - ошибка в кэше
func TestFlightService_List_CacheError(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := newService(mockRepo, mockCache)
	ctx := context.Background()
	flights := sampleFlights()

	mockCache.On("GetFlights", ctx).Return(([]domain.Flight)(nil), errors.New("cache error")).Once()
	mockRepo.On("List", ctx).Return(flights, nil).Once()
	mockCache.On("SetFlights", ctx, flights).Return(nil).Once()

	result, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, flights, result)

	mockCache.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

// Тест 4: Получение списка рейсов - ошибка в репозитории
func TestFlightService_List_RepositoryError(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := newService(mockRepo, mockCache)
	ctx := context.Background()

	expectedErr := errors.New("database error")
	mockCache.On("GetFlights", ctx).Return(([]domain.Flight)(nil), nil).Once()
	mockRepo.On("List", ctx).Return([]domain.Flight{}, expectedErr).Once()

	result, err := service.List(ctx)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, expectedErr)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	mockCache.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
	mockCache.AssertNotCalled(t, "SetFlights")
}

func TestFlightService_List_WithoutCache(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := newService(mockRepo, nil)
	ctx := context.Background()

	mockRepo.On("List", ctx).Return(sampleFlights(), nil).Once()

	result, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, result, 1)
	mockRepo.AssertExpectations(t)
}

// Тест 5: Получение рейса по ID
func TestFlightService_GetByID(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := newService(mockRepo, nil)
	ctx := context.Background()
	flight := sampleFlights()[0]

	mockRepo.On("GetByID", ctx, int64(4)).Return(&flight, nil).Once()
	mockRepo.On("GetByID", ctx, int64(5)).Return(nil, repository.ErrFlightNotFound).Once()
	mockRepo.On("GetByID", ctx, int64(6)).Return(nil, errors.New("timeout")).Once()

	got, err := service.GetByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "SK4", got.FlightNumber)

	_, err = service.GetByID(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.GetByID(ctx, 6)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	mockRepo.AssertExpectations(t)
}

func TestFlightService_Price(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := newService(mockRepo, nil)
	ctx := context.Background()
	flight := sampleFlights()[0]

	mockRepo.On("GetByID", ctx, int64(4)).Return(&flight, nil).Once()

	quote, err := service.Price(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "577.50", quote.Price.StringFixed(2))
	assert.Equal(t, "1.05", quote.TimeMultiplier.String())
	assert.Equal(t, "1", quote.OccupancyMultiplier.String())
	assert.Equal(t, 150, quote.SeatsRemaining)
	assert.Equal(t, quotedAt, quote.QuotedAt)

	mockRepo.AssertExpectations(t)
}

func TestFlightService_Price_NotFound(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := newService(mockRepo, nil)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(9)).Return(nil, repository.ErrFlightNotFound).Once()

	quote, err := service.Price(ctx, 9)
	assert.Nil(t, quote)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
