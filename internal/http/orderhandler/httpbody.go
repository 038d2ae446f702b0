package orderhandler

type CreateOrderBody struct {
	CustomerID   string `json:"customer_id"   binding:"required" example:"user123"`
	RestaurantID string `json:"restaurant_id" binding:"required" example:"rest456"`
} // @name CreateOrderRequest

type CreateOrderResponse struct {
	ID string `json:"id"`
} // @name CreateOrderResponse

type UpdateStatusBody struct {
	Status    string `json:"status"     binding:"required,oneof=PREPARING READY OUT_FOR_DELIVERY DELIVERED CANCELLED"`
	CourierID string `json:"courier_id" binding:"required_if=Status OUT_FOR_DELIVERY" example:"courier789"`
} // @name UpdateStatusRequest

type UpdateLocationBody struct {
	Lat float64 `json:"lat" binding:"required,gte=-90,lte=90"   example:"52.52"`
	Lng float64 `json:"lng" binding:"required,gte=-180,lte=180" example:"13.405"`
} // @name UpdateLocationRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListOrdersQuery struct {
	Status string `form:"status"  binding:"omitempty,oneof=PLACED PREPARING READY OUT_FOR_DELIVERY DELIVERED CANCELLED"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListOrdersQuery
