package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/health"
	"github.com/kbukum/resilkit/server"
	"github.com/kbukum/resilkit/validation"
	"github.com/kbukum/resilkit/version"
)

type createOrderRequest struct {
	CustomerID string `json:"customer_id"`
}

type addItemRequest struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *system) routes(srv *server.Server, agg *health.Aggregator) {
	r := srv.Engine()

	r.GET("/healthz", health.Handler(agg))
	r.GET("/version", func(c *gin.Context) { server.RespondOK(c, version.Get()) })

	r.GET("/services", func(c *gin.Context) { server.RespondOK(c, s.registry.ListAll()) })
	r.GET("/services/:name", func(c *gin.Context) {
		d, ok := s.registry.Discover(c.Param("name"))
		if !ok {
			server.RespondWithError(c, errors.NotFound("service", c.Param("name")))
			return
		}
		server.RespondOK(c, d)
	})
	r.GET("/services/:name/watch", func(c *gin.Context) {
		server.Stream(c, "service", s.registry.Watch(c.Request.Context(), c.Param("name")), 0)
	})
	r.GET("/pools", func(c *gin.Context) { server.RespondOK(c, s.pools.Pools()) })
	r.GET("/breakers/:name", func(c *gin.Context) {
		if c.Param("name") != s.breaker.Name() {
			server.RespondWithError(c, errors.NotFound("breaker", c.Param("name")))
			return
		}
		snap := s.breaker.Snapshot()
		server.RespondOK(c, gin.H{
			"name":                 s.breaker.Name(),
			"state":                snap.State.String(),
			"consecutive_failures": snap.ConsecutiveFailures,
		})
	})

	orders := r.Group("/orders")
	orders.POST("", s.createOrder)
	orders.GET("/:id", s.getOrder)
	orders.POST("/:id/items", s.addItem)
	orders.POST("/:id/confirm", s.confirmOrder)
	orders.POST("/:id/cancel", s.cancelOrder)
}

func (s *system) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	id := uuid.NewString()
	if err := s.orders.CreateOrder(c.Request.Context(), id, req.CustomerID); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, gin.H{"id": id})
}

// orderID returns the :id path parameter. Order IDs are minted by
// createOrder, so anything that is not a UUID is rejected with 400.
func orderID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := validation.New().UUID("id", id).Validate(); err != nil {
		server.RespondWithError(c, err)
		return "", false
	}
	return id, true
}

func (s *system) getOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	st, err := s.orders.GetState(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, st)
}

func (s *system) addItem(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	if err := s.orders.AddItem(c.Request.Context(), id, req.ProductID, req.Price, req.Quantity); err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *system) confirmOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	if err := s.orders.ConfirmOrder(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *system) cancelOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	if err := s.orders.CancelOrder(c.Request.Context(), id, req.Reason); err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
