package api

import (
	"net/http"
	"strconv"
	"time"

	"order-agent/internal/agent"
	"order-agent/internal/models"
	"order-agent/internal/order"
	"order-agent/internal/payment"
	"order-agent/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	tools   *agent.Tools
	orders  *order.Accumulator
	webhook *payment.WebhookProcessor
}

// NewHandler creates a new HTTP handler
func NewHandler(tools *agent.Tools, orders *order.Accumulator, webhook *payment.WebhookProcessor) *Handler {
	return &Handler{
		tools:   tools,
		orders:  orders,
		webhook: webhook,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/payment", h.paymentWebhook)

	v1 := router.Group("/api/v1")
	{
		tools := v1.Group("/tools")
		{
			tools.POST("/process-order", h.processOrder)
			tools.POST("/calculate-delivery", h.calculateDelivery)
			tools.POST("/process-pickup", h.processPickup)
			tools.POST("/create-charge", h.createCharge)
			tools.POST("/process-cash-payment", h.processCashPayment)
			tools.POST("/confirm-order", h.confirmOrder)
			tools.POST("/update-customer-name", h.updateCustomerName)
		}

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/status", h.advanceOrderStatus)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// toolCall binds the request, invokes the tool and writes the uniform result
func toolCall[Req any](c *gin.Context, invoke func(*Req) (*agent.Result, error)) {
	var req Req
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := invoke(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Tool execution failed",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) processOrder(c *gin.Context) {
	toolCall(c, func(req *agent.ProcessOrderRequest) (*agent.Result, error) {
		return h.tools.ProcessOrder(c.Request.Context(), req)
	})
}

func (h *Handler) calculateDelivery(c *gin.Context) {
	toolCall(c, func(req *agent.CalculateDeliveryRequest) (*agent.Result, error) {
		return h.tools.CalculateDelivery(c.Request.Context(), req)
	})
}

func (h *Handler) processPickup(c *gin.Context) {
	toolCall(c, func(req *agent.ProcessPickupRequest) (*agent.Result, error) {
		return h.tools.ProcessPickup(c.Request.Context(), req)
	})
}

func (h *Handler) createCharge(c *gin.Context) {
	toolCall(c, func(req *agent.CreateChargeRequest) (*agent.Result, error) {
		return h.tools.CreateCharge(c.Request.Context(), req)
	})
}

func (h *Handler) processCashPayment(c *gin.Context) {
	toolCall(c, func(req *agent.ProcessCashPaymentRequest) (*agent.Result, error) {
		return h.tools.ProcessCashPayment(c.Request.Context(), req)
	})
}

func (h *Handler) confirmOrder(c *gin.Context) {
	toolCall(c, func(req *agent.ConfirmOrderRequest) (*agent.Result, error) {
		return h.tools.ConfirmOrder(c.Request.Context(), req)
	})
}

func (h *Handler) updateCustomerName(c *gin.Context) {
	toolCall(c, func(req *agent.UpdateCustomerNameRequest) (*agent.Result, error) {
		return h.tools.UpdateCustomerName(c.Request.Context(), req)
	})
}

// paymentWebhook handles payment provider callbacks
func (h *Handler) paymentWebhook(c *gin.Context) {
	var event payment.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	if err := h.webhook.Process(c.Request.Context(), &event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process webhook",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// listOrders lists orders in a given status (kitchen/admin view)
func (h *Handler) listOrders(c *gin.Context) {
	status := models.OrderStatus(c.Query("status"))
	if status == "" {
		status = models.StatusSentToKitchen
	}

	orders, err := h.orders.ListByStatus(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list orders",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	c.JSON(http.StatusOK, o)
}

// advanceOrderStatus applies a kitchen-side lifecycle step
func (h *Handler) advanceOrderStatus(c *gin.Context) {
	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	o, err := h.orders.AdvanceStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Status transition rejected",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, o)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
