package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/Domenick1991/skyline/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	UserID        int64  `json:"user_id" binding:"required"`
	FlightID      int64  `json:"flight_id" binding:"required"`
	PassengerName string `json:"passenger_name" binding:"required"`
}

type bookingResponse struct {
	PNR           string          `json:"pnr"`
	Status        string          `json:"status"`
	UserID        int64           `json:"user_id"`
	FlightID      int64           `json:"flight_id"`
	PassengerName string          `json:"passenger_name"`
	PricePaid     decimal.Decimal `json:"price_paid"`
	CreatedAt     time.Time       `json:"created_at"`
}

type cancellationResponse struct {
	PNR           string          `json:"pnr"`
	Status        string          `json:"status"`
	UserID        int64           `json:"user_id"`
	FlightID      int64           `json:"flight_id"`
	PassengerName string          `json:"passenger_name"`
	PricePaid     decimal.Decimal `json:"price_paid"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	CancelledAt   time.Time       `json:"cancelled_at"`
}

func newBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		PNR:           b.PNR,
		Status:        string(b.Status),
		UserID:        b.UserID,
		FlightID:      b.FlightID,
		PassengerName: b.PassengerName,
		PricePaid:     b.PricePaid,
		CreatedAt:     b.CreatedAt,
	}
}

func newCancellationResponse(cb domain.CancelledBooking) cancellationResponse {
	return cancellationResponse{
		PNR:           cb.PNR,
		Status:        string(domain.BookingStatusCancelled),
		UserID:        cb.UserID,
		FlightID:      cb.FlightID,
		PassengerName: cb.PassengerName,
		PricePaid:     cb.PricePaid,
		RefundAmount:  cb.RefundAmount,
		CancelledAt:   cb.CancelledAt,
	}
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.POST("/holds", h.hold)
	router.POST("/:pnr/pay", h.pay)
	router.GET("/:pnr", h.get)
	router.DELETE("/:pnr", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	b, err := h.service.Book(c.Request.Context(), booking.BookInput{
		UserID:        req.UserID,
		FlightID:      req.FlightID,
		PassengerName: req.PassengerName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newBookingResponse(*b))
}

func (h *BookingHandler) hold(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	b, err := h.service.Hold(c.Request.Context(), booking.BookInput{
		UserID:        req.UserID,
		FlightID:      req.FlightID,
		PassengerName: req.PassengerName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newBookingResponse(*b))
}

// pay confirms a held booking. Paying twice returns the booking unchanged.
func (h *BookingHandler) pay(c *gin.Context) {
	b, err := h.service.Confirm(c.Request.Context(), c.Param("pnr"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(*b))
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetByPNR(c.Request.Context(), c.Param("pnr"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(*b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	cb, err := h.service.Cancel(c.Request.Context(), c.Param("pnr"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCancellationResponse(*cb))
}
