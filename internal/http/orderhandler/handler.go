package orderhandler

import (
	"errors"
	"net/http"

	"ordertrackgo/internal/services/order"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc order.IOrderService
}

func New(svc order.IOrderService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/orders", h.list)
	r.GET("/orders/:id/track", h.track)
	r.POST("/orders", h.create)
	r.POST("/orders/:id/status", h.status)
	r.POST("/orders/:id/location", h.location)
}

// @Summary		List orders
// @Description	Retrieves a paginated list of orders, optionally filtered by status.
// @Tags			Orders
// @Param			status	query		string	false	"Status filter"			Enums(PLACED,PREPARING,READY,OUT_FOR_DELIVERY,DELIVERED,CANCELLED)
// @Param			limit	query		int		false	"Max results (0‑100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		order.OrderDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/orders [get]
func (h *Handler) list(c *gin.Context) {
	var q ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.ListOrders(c, q.Status, q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Track an order
// @Description	Returns the point-in-time tracking snapshot. Clients fetch this before joining the live channel.
// @Tags			Orders
// @Param			id	path		string	true	"Order ID"
// @Success		200	{object}	order.OrderDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/orders/{id}/track [get]
func (h *Handler) track(c *gin.Context) {
	dto, err := h.svc.TrackOrder(c, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto)
}

// @Summary		Create an order
// @Description	Persists a new order and starts its live tracking channel.
// @Tags			Orders
// @Param			body	body		CreateOrderBody	true	"Order payload"
// @Success		201		{object}	CreateOrderResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/orders [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateOrderBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	id, err := h.svc.CreateOrder(ginCtx.Request.Context(), body.CustomerID, body.RestaurantID)
	if err != nil {
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusCreated, CreateOrderResponse{ID: id})
}

// @Summary		Update order status
// @Description	Restaurant/courier advances the order through its status machine; the change is pushed to tracking subscribers.
// @Tags			Orders
// @Param			id		path	string				true	"Order ID"
// @Param			body	body	UpdateStatusBody	true	"Status payload"
// @Success		202
// @Failure		400	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/orders/{id}/status [post]
func (h *Handler) status(ginCtx *gin.Context) {
	var body UpdateStatusBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	err := h.svc.UpdateStatus(ginCtx.Request.Context(), ginCtx.Param("id"), body.Status, body.CourierID)
	if err != nil {
		ginCtx.JSON(statusCode(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Report courier location
// @Description	Courier position ping; pushed to tracking subscribers and appended to the route history.
// @Tags			Orders
// @Param			id		path	string				true	"Order ID"
// @Param			body	body	UpdateLocationBody	true	"Position payload"
// @Success		202
// @Failure		400	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/orders/{id}/location [post]
func (h *Handler) location(ginCtx *gin.Context) {
	var body UpdateLocationBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	err := h.svc.UpdateLocation(ginCtx.Request.Context(), ginCtx.Param("id"), body.Lat, body.Lng)
	if err != nil {
		ginCtx.JSON(statusCode(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrBadTransition),
		errors.Is(err, order.ErrOrderClosed),
		errors.Is(err, order.ErrNotInTransit):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
