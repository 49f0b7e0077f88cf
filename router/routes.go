package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/coursehub/paygate/handler"
	"github.com/coursehub/paygate/infra/middle"
	v1 "github.com/coursehub/paygate/router/v1"

	// Import for side-effect registration
	_ "github.com/coursehub/paygate/gateway/kapitalbank"
	_ "github.com/coursehub/paygate/gateway/stripe"
)

// Routes registers the authenticated API routes
func Routes(r chi.Router, orderService handler.OrderServiceInterface, defaultDriver string) {
	r.Use(middle.AuthMiddleware())

	r.Route("/v1", func(r chi.Router) {
		v1.Routes(r, orderService, defaultDriver)
	})
}
