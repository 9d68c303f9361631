package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type createFlightRequest struct {
	Origin        string          `json:"origin" binding:"required,len=3,alpha"`
	Destination   string          `json:"destination" binding:"required,len=3,alpha,nefield=Origin"`
	DepartureTime time.Time       `json:"departure_time" binding:"required"`
	Price         decimal.Decimal `json:"price" binding:"decimal_gt0"`
	TotalSeats    int             `json:"total_seats" binding:"required,gt=0"`
}

type setFlightStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

// Register mounts the read routes; admin routes go under admin, which is expected to
// carry the role check.
func (h *FlightHandler) Register(router *gin.RouterGroup, admin *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	admin.POST("", h.create)
	admin.PATCH("/:id/status", h.setStatus)
	admin.GET("/:id/accounting", h.accounting)
}

func (h *FlightHandler) list(c *gin.Context) {
	flights, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flights)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) create(c *gin.Context) {
	var req createFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	flight, err := h.service.Create(c.Request.Context(), flights.CreateFlightInput{
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		Price:         req.Price,
		TotalSeats:    req.TotalSeats,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flight)
}

func (h *FlightHandler) setStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req setFlightStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	flight, err := h.service.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, fmt.Errorf("invalid id %q: %w", c.Param("id"), domain.ErrInvalidRequest))
		return 0, false
	}
	return id, true
}

func writeBindError(c *gin.Context, err error) {
	writeError(c, fmt.Errorf("%s: %w", err.Error(), domain.ErrInvalidRequest))
}

func (h *FlightHandler) accounting(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	account, err := h.service.Accounting(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"flight_id": account.FlightID,
		"capacity":  account.Capacity,
		"available": account.Available,
		"held":      account.Held,
		"drift":     account.Drift(),
	})
}
