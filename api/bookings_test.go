package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/Domenick1991/skyline/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) Book(ctx context.Context, input booking.BookInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Hold(ctx context.Context, input booking.BookInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Confirm(ctx context.Context, pnr string) (*domain.Booking, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Cancel(ctx context.Context, pnr string) (*domain.CancelledBooking, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CancelledBooking), args.Error(1)
}

func (m *MockBookingUseCase) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) History(ctx context.Context, userID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Cancellations(ctx context.Context, userID int64) ([]domain.CancelledBooking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.CancelledBooking), args.Error(1)
}

func newJSONContext(method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	data, _ := json.Marshal(body)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(data))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func confirmedBooking() *domain.Booking {
	return &domain.Booking{
		ID:            1,
		UserID:        42,
		FlightID:      1,
		PNR:           "K7QX2M",
		PricePaid:     decimal.RequireFromString("577.50"),
		Status:        domain.BookingStatusConfirmed,
		PassengerName: "Ivan Petrov",
		CreatedAt:     time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	input := booking.BookInput{UserID: 42, FlightID: 1, PassengerName: "Ivan Petrov"}
	c, w := newJSONContext("POST", "/bookings", input)

	mockService.On("Book", c.Request.Context(), input).Return(confirmedBooking(), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "K7QX2M", response.PNR)
	assert.Equal(t, string(domain.BookingStatusConfirmed), response.Status)
	assert.Equal(t, "577.5", response.PricePaid.String())

	mockService.AssertExpectations(t)
}

func TestBookingHandler_create_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"sold out", &domain.SoldOutError{FlightID: 1}, http.StatusConflict},
		{"unknown flight", domain.FlightNotFound(1), http.StatusNotFound},
		{"invalid", domain.ErrInvalidInput, http.StatusBadRequest},
		{"exhausted", &domain.PNRExhaustedError{Attempts: 5}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			handler := NewBookingHandler(mockService)
			input := booking.BookInput{UserID: 42, FlightID: 1, PassengerName: "Ivan Petrov"}
			c, w := newJSONContext("POST", "/bookings", input)

			mockService.On("Book", c.Request.Context(), input).Return(nil, tc.err)

			handler.create(c)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestBookingHandler_create_BadBody(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)
	c, w := newJSONContext("POST", "/bookings", map[string]any{"flight_id": 1})

	handler.create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Book")
}

func TestBookingHandler_get(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)
	c, w := newTestContext("GET", "/bookings/k7qx2m")
	c.Params = gin.Params{{Key: "pnr", Value: "k7qx2m"}}

	mockService.On("GetByPNR", c.Request.Context(), "k7qx2m").Return(confirmedBooking(), nil)

	handler.get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_cancel(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)
	c, w := newTestContext("DELETE", "/bookings/K7QX2M")
	c.Params = gin.Params{{Key: "pnr", Value: "K7QX2M"}}

	cancelled := &domain.CancelledBooking{
		BookingID:    1,
		PNR:          "K7QX2M",
		UserID:       42,
		FlightID:     1,
		PricePaid:    decimal.RequireFromString("577.50"),
		RefundAmount: decimal.RequireFromString("577.50"),
	}
	mockService.On("Cancel", c.Request.Context(), "K7QX2M").Return(cancelled, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response cancellationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, string(domain.BookingStatusCancelled), response.Status)
	assert.Equal(t, "577.5", response.RefundAmount.String())

	mockService.AssertExpectations(t)
}

func TestBookingHandler_cancel_Twice(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)
	c, w := newTestContext("DELETE", "/bookings/K7QX2M")
	c.Params = gin.Params{{Key: "pnr", Value: "K7QX2M"}}

	mockService.On("Cancel", c.Request.Context(), "K7QX2M").
		Return(nil, &domain.AlreadyCancelledError{PNR: "K7QX2M", Status: domain.BookingStatusCancelled})

	handler.cancel(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBookingHandler_hold(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	input := booking.BookInput{UserID: 42, FlightID: 1, PassengerName: "Ivan Petrov"}
	c, w := newJSONContext("POST", "/bookings/holds", input)

	held := confirmedBooking()
	held.Status = domain.BookingStatusPendingPayment
	mockService.On("Hold", c.Request.Context(), input).Return(held, nil)

	handler.hold(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, string(domain.BookingStatusPendingPayment), response.Status)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_pay(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)
	c, w := newTestContext("POST", "/bookings/K7QX2M/pay")
	c.Params = gin.Params{{Key: "pnr", Value: "K7QX2M"}}

	mockService.On("Confirm", c.Request.Context(), "K7QX2M").Return(confirmedBooking(), nil)

	handler.pay(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, string(domain.BookingStatusConfirmed), response.Status)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_pay_SoldOut(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)
	c, w := newTestContext("POST", "/bookings/K7QX2M/pay")
	c.Params = gin.Params{{Key: "pnr", Value: "K7QX2M"}}

	mockService.On("Confirm", c.Request.Context(), "K7QX2M").Return(nil, &domain.SoldOutError{FlightID: 1})

	handler.pay(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}
