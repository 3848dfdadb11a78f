package api

import (
	"net/http"

	"github.com/Domenick1991/skyline/internal/service/booking"
	"github.com/gin-gonic/gin"
)

// UserHandler serves a user's booking history.
type UserHandler struct {
	service booking.BookingUseCase
}

func NewUserHandler(service booking.BookingUseCase) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Register(router *gin.RouterGroup) {
	router.GET("/:id/bookings", h.bookings)
	router.GET("/:id/cancellations", h.cancellations)
}

func (h *UserHandler) bookings(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		resp = append(resp, newBookingResponse(b))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) cancellations(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.service.Cancellations(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]cancellationResponse, 0, len(list))
	for _, cb := range list {
		resp = append(resp, newCancellationResponse(cb))
	}
	c.JSON(http.StatusOK, resp)
}
