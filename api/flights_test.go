package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/Domenick1991/skyline/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFlightUseCase is a mock implementation of flights.FlightUseCase
type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Price(ctx context.Context, id int64) (*flights.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*flights.Quote), args.Error(1)
}

func newTestContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, w
}

func TestFlightHandler_list(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)
	c, w := newTestContext("GET", "/flights")

	list := []domain.Flight{
		{ID: 1, FlightNumber: "SK550", Origin: "SVO", Destination: "LED", BasePrice: decimal.RequireFromString("550"), TotalSeats: 200, SeatsRemaining: 150, DemandFactor: 1},
	}
	mockService.On("List", c.Request.Context()).Return(list, nil)

	handler.list(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "SK550", resp[0]["flight_number"])
	assert.Equal(t, "550", resp[0]["base_price"])
	assert.NotContains(t, resp[0], "departure_time")

	mockService.AssertExpectations(t)
}

func TestFlightHandler_get(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)
	c, w := newTestContext("GET", "/flights/1")
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	departure := time.Date(2026, 11, 20, 7, 0, 0, 0, time.UTC)
	flight := &domain.Flight{ID: 1, FlightNumber: "SK550", TotalSeats: 200, SeatsRemaining: 150, DepartureTime: departure}
	mockService.On("GetByID", c.Request.Context(), int64(1)).Return(flight, nil)

	handler.get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp flightResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ID)
	require.NotNil(t, resp.DepartureTime)
	assert.True(t, departure.Equal(*resp.DepartureTime))

	mockService.AssertExpectations(t)
}

func TestFlightHandler_get_Errors(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)

	c, w := newTestContext("GET", "/flights/abc")
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	handler.get(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext("GET", "/flights/7")
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	mockService.On("GetByID", c.Request.Context(), int64(7)).Return(nil, domain.FlightNotFound(7))
	handler.get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	mockService.AssertExpectations(t)
}

func TestFlightHandler_price(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)
	c, w := newTestContext("GET", "/flights/1/price")
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	quote := &flights.Quote{FlightID: 1, Price: decimal.RequireFromString("577.50"), SeatsRemaining: 150, TotalSeats: 200}
	mockService.On("Price", c.Request.Context(), int64(1)).Return(quote, nil)

	handler.price(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "577.5", resp["price"])
	assert.EqualValues(t, 150, resp["seats_remaining"])
}

func TestFlightHandler_list_Error(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)
	c, w := newTestContext("GET", "/flights")

	mockService.On("List", c.Request.Context()).Return([]domain.Flight(nil), domain.Persistence("list flights", errors.New("connection refused")))

	handler.list(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
