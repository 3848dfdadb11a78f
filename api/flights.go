package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/Domenick1991/skyline/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type flightResponse struct {
	ID             int64           `json:"id"`
	FlightNumber   string          `json:"flight_number"`
	Airline        string          `json:"airline"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	BasePrice      decimal.Decimal `json:"base_price"`
	TotalSeats     int             `json:"total_seats"`
	SeatsRemaining int             `json:"seats_remaining"`
	DemandFactor   float64         `json:"demand_factor"`
	DepartureTime  *time.Time      `json:"departure_time,omitempty"`
}

func newFlightResponse(f domain.Flight) flightResponse {
	resp := flightResponse{
		ID:             f.ID,
		FlightNumber:   f.FlightNumber,
		Airline:        f.Airline,
		Origin:         f.Origin,
		Destination:    f.Destination,
		BasePrice:      f.BasePrice,
		TotalSeats:     f.TotalSeats,
		SeatsRemaining: f.SeatsRemaining,
		DemandFactor:   f.DemandFactor,
	}
	if !f.DepartureTime.IsZero() {
		at := f.DepartureTime
		resp.DepartureTime = &at
	}
	return resp
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/price", h.price)
}

func (h *FlightHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]flightResponse, 0, len(list))
	for _, f := range list {
		resp = append(resp, newFlightResponse(f))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFlightResponse(*flight))
}

func (h *FlightHandler) price(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.service.Price(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
