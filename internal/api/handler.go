package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"course-commerce/internal/auth"
	"course-commerce/internal/notify"
	"course-commerce/internal/service"
	"course-commerce/internal/store"
	"course-commerce/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Handler contains HTTP handlers
type Handler struct {
	authService       *service.AuthService
	catalogService    *service.CatalogService
	cartService       *service.CartService
	orderService      *service.OrderService
	paymentService    *service.PaymentService
	enrollmentService *service.EnrollmentService
	linkService       *service.LinkService
	notifier          *notify.Notifier
	tokens            *auth.TokenManager
}

// NewHandler creates a new HTTP handler
func NewHandler(
	authService *service.AuthService,
	catalogService *service.CatalogService,
	cartService *service.CartService,
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	enrollmentService *service.EnrollmentService,
	linkService *service.LinkService,
	notifier *notify.Notifier,
	tokens *auth.TokenManager,
) *Handler {
	return &Handler{
		authService:       authService,
		catalogService:    catalogService,
		cartService:       cartService,
		orderService:      orderService,
		paymentService:    paymentService,
		enrollmentService: enrollmentService,
		linkService:       linkService,
		notifier:          notifier,
		tokens:            tokens,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/payment", h.paymentWebhook)
	router.GET("/downloads/:token", h.download)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.Use(auth.RateLimitMiddleware(rate.Every(time.Minute/30), 10))
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}

	v1.GET("/courses", h.listCourses)
	v1.GET("/courses/:id", h.getCourse)

	cart := v1.Group("/cart")
	cart.Use(h.tokens.OptionalMiddleware())
	{
		cart.GET("", h.getCart)
		cart.POST("/items", h.addCartItem)
		cart.PUT("/items/:id", h.updateCartItem)
		cart.DELETE("/items/:id", h.removeCartItem)
	}

	authed := v1.Group("")
	authed.Use(h.tokens.Middleware())
	{
		authed.POST("/cart/merge", h.mergeCart)
		authed.POST("/orders", h.createOrder)
		authed.GET("/orders", h.listOrders)
		authed.GET("/orders/:id", h.getOrder)
		authed.POST("/orders/:id/checkout", h.checkout)
		authed.GET("/orders/:id/payments", h.listPayments)
		authed.GET("/enrollments", h.listEnrollments)
		authed.POST("/enrollments/:id/complete", h.completeEnrollment)
	}

	h.setupAdminRoutes(v1)
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

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listCourses(c *gin.Context) {
	afterID, _ := strconv.ParseInt(c.Query("after"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	courses, err := h.catalogService.ListCourses(c.Request.Context(), afterID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var next int64
	if len(courses) > 0 {
		next = courses[len(courses)-1].ID
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses, "next_after": next})
}

func (h *Handler) getCourse(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}

	view, err := h.catalogService.GetCourse(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// cartIdentity extracts the caller's user ID (JWT) or anonymous ID
// (X-Anonymous-ID header)
func cartIdentity(c *gin.Context) (int64, string) {
	return auth.UserID(c), c.GetHeader("X-Anonymous-ID")
}

func (h *Handler) getCart(c *gin.Context) {
	userID, anonID := cartIdentity(c)
	view, err := h.cartService.GetCart(c.Request.Context(), userID, anonID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	userID, anonID := cartIdentity(c)
	item, err := h.cartService.AddItem(c.Request.Context(), userID, anonID, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	itemID, err := pathID(c, "id")
	if err != nil {
		return
	}

	var req struct {
		Quantity int `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	userID, anonID := cartIdentity(c)
	if err := h.cartService.UpdateItemQuantity(c.Request.Context(), userID, anonID, itemID, req.Quantity); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	itemID, err := pathID(c, "id")
	if err != nil {
		return
	}

	userID, anonID := cartIdentity(c)
	if err := h.cartService.RemoveItem(c.Request.Context(), userID, anonID, itemID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) mergeCart(c *gin.Context) {
	var req struct {
		AnonymousID string `json:"anonymous_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	view, err := h.cartService.Merge(c.Request.Context(), auth.UserID(c), req.AnonymousID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) createOrder(c *gin.Context) {
	idempotencyKey := c.GetHeader("Idempotency-Key")

	resp, err := h.orderService.CreateOrder(c.Request.Context(), auth.UserID(c), idempotencyKey)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		return
	}

	order, items, err := h.orderService.GetOrder(c.Request.Context(), auth.UserID(c), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

func (h *Handler) checkout(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		return
	}

	resp, err := h.orderService.Checkout(c.Request.Context(), auth.UserID(c), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listPayments(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		return
	}

	// Ownership check via GetOrder
	if _, _, err := h.orderService.GetOrder(c.Request.Context(), auth.UserID(c), orderID); err != nil {
		h.writeError(c, err)
		return
	}

	payments, err := h.paymentService.GetPayments(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if err := h.paymentService.HandleWebhook(c.Request.Context(), body, signature); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (h *Handler) listEnrollments(c *gin.Context) {
	views, err := h.enrollmentService.ListEnrollments(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": views})
}

func (h *Handler) completeEnrollment(c *gin.Context) {
	enrollmentID, err := pathID(c, "id")
	if err != nil {
		return
	}

	if err := h.enrollmentService.MarkCompleted(c.Request.Context(), auth.UserID(c), enrollmentID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) download(c *gin.Context) {
	token := c.Param("token")

	attachment, reader, err := h.linkService.Download(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", "attachment; filename=\""+attachment.FileName+"\"")
	c.Header("Content-Type", attachment.ContentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

// pathID parses a numeric path parameter, writing the 400 itself
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, errors.New("invalid path id")
	}
	return id, nil
}

// writeError maps business errors onto HTTP statuses
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrOrderNotPayable),
		errors.Is(err, service.ErrInsufficientSeats),
		errors.Is(err, store.ErrInsufficientSeats):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrLinkRevoked),
		errors.Is(err, service.ErrEnrollmentInactive):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrCartEmpty),
		errors.Is(err, service.ErrCourseUnavailable),
		errors.Is(err, service.ErrSessionMismatch),
		errors.Is(err, service.ErrCartOwnership):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrWebhookBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
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
