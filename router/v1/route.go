package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/coursehub/paygate/handler"
)

// Routes registers all v1 API routes
func Routes(r chi.Router, orderService handler.OrderServiceInterface, defaultDriver string) {
	orderHandler := handler.NewOrderHandler(orderService, validator.New(), defaultDriver)

	r.Route("/order", func(r chi.Router) {
		r.Post("/", orderHandler.CreateOrder)
		r.Get("/{orderId}/status", orderHandler.GetOrderStatus)
		r.Post("/{orderId}/source-token", orderHandler.AttachSourceToken)
	})
}
