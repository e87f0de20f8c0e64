package api

import (
	"github.com/gin-gonic/gin"

	"github.com/threadline/checkout/internal/domain/address"
	"github.com/threadline/checkout/internal/domain/catalog"
	"github.com/threadline/checkout/internal/domain/checkout"
	"github.com/threadline/checkout/internal/domain/order"
	"github.com/threadline/checkout/internal/domain/payment"
	"github.com/threadline/checkout/internal/domain/request"
)

// Server wires the domain services into the HTTP surface.
type Server struct {
	engine    *gin.Engine
	catalog   catalog.Repository
	drafts    *checkout.Store
	orders    *order.Service
	payments  *payment.Service
	requests  *request.Service
	addresses *address.Store
	apikeys   APIKeyFinder
}

// NewServer builds the router. Recovery and request logging are applied
// outside, at the http.Handler level, so the engine carries no middleware
// of its own.
func NewServer(
	cat catalog.Repository,
	drafts *checkout.Store,
	orders *order.Service,
	payments *payment.Service,
	requests *request.Service,
	addresses *address.Store,
	apikeys APIKeyFinder,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:    gin.New(),
		catalog:   cat,
		drafts:    drafts,
		orders:    orders,
		payments:  payments,
		requests:  requests,
		addresses: addresses,
		apikeys:   apikeys,
	}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying router for mounting and tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	api.GET("/products", s.listProducts)
	api.GET("/products/:handle", s.getProduct)

	customer := api.Group("", s.requireCustomer)
	{
		draft := customer.Group("/checkout/draft")
		draft.POST("", s.beginDraft)
		draft.GET("", s.getDraft)
		draft.PUT("/address", s.setDraftAddress)
		draft.PUT("/payment-method", s.setDraftPaymentMethod)
		draft.POST("/discount", s.applyDiscount)
		draft.DELETE("", s.abandonDraft)

		orders := customer.Group("/orders")
		orders.POST("", s.placeOrder)
		orders.GET("", s.listOrders)
		orders.POST("/gateway/intent", s.createGatewayIntent)
		orders.POST("/gateway/confirm", s.confirmGatewayPayment)
		orders.DELETE("/gateway/intent", s.abandonGatewayIntent)
		orders.GET("/:id", s.getOrder)
		orders.POST("/:id/cancel", s.submitRequest(request.TypeCancel))
		orders.POST("/:id/return", s.submitRequest(request.TypeReturn))
		orders.POST("/:id/exchange", s.submitRequest(request.TypeExchange))
		orders.GET("/:id/requests", s.listOrderRequests)

		customer.GET("/addresses", s.listAddresses)
		customer.POST("/addresses", s.saveAddress)
	}

	staff := api.Group("/staff", s.requireStaffKey)
	{
		staff.PATCH("/orders/:id", s.staffUpdateOrder)
		staff.PATCH("/requests/:id", s.staffUpdateRequest)
	}
}
