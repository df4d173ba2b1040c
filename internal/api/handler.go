package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"funnel-service/internal/apperr"
	"funnel-service/internal/models"
	"funnel-service/internal/service"
	"funnel-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	customers     *service.CustomerService
	opportunities *service.OpportunityService
	quotes        *service.QuoteService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	customers *service.CustomerService,
	opportunities *service.OpportunityService,
	quotes *service.QuoteService,
) *Handler {
	return &Handler{
		customers:     customers,
		opportunities: opportunities,
		quotes:        quotes,
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

	v1 := router.Group("/api/v1")
	{
		v1.POST("/customers", h.createCustomer)
		v1.GET("/customers/:id", h.getCustomer)
		v1.POST("/customers/:id/claim", h.claimCustomer)
		v1.POST("/customers/:id/release", h.releaseCustomer)
		v1.POST("/customers/:id/contact", h.touchContact)
		v1.DELETE("/customers/:id", h.deleteCustomer)
		v1.POST("/customers/claim-batch", h.batchClaim)
		v1.GET("/customers/inactive", h.findInactive)
		v1.GET("/owners/:id/slots", h.slotUsage)

		v1.POST("/opportunities", h.createOpportunity)
		v1.GET("/opportunities/:id", h.getOpportunity)
		v1.POST("/opportunities/:id/stage", h.transitionStage)

		v1.POST("/quotes", h.createQuote)
		v1.GET("/quotes/:id", h.getQuote)
		v1.PUT("/quotes/:id/items", h.replaceQuoteItems)
		v1.POST("/quotes/:id/submit", h.submitQuote)
		v1.POST("/quotes/:id/escalate", h.escalateQuote)
		v1.POST("/quotes/:id/approve", h.approveQuote)
		v1.POST("/quotes/:id/reject", h.rejectQuote)
		v1.POST("/quotes/:id/reopen", h.reopenQuote)
		v1.POST("/quotes/:id/convert", h.convertQuote)
		v1.POST("/quotes/:id/copy", h.copyQuote)
		v1.GET("/quotes/:id/approvals", h.approvalLog)

		v1.GET("/pricing/price", h.lookupPrice)
	}
}

// actorFrom reads the identity the auth collaborator attached upstream.
func actorFrom(c *gin.Context) (models.Actor, bool) {
	idStr := c.GetHeader("X-Actor-Id")
	role := c.GetHeader("X-Actor-Role")

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || role == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing or invalid X-Actor-Id / X-Actor-Role headers",
		})
		return models.Actor{}, false
	}
	return models.Actor{ID: id, Role: role}, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps the business error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrLossReasonRequired):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrHasDependents),
		errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrCapacityExceeded):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
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

func (h *Handler) createCustomer(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req service.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	customer, err := h.customers.CreateCustomer(c.Request.Context(), &req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) getCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	customer, err := h.customers.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) claimCustomer(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	customer, err := h.customers.Claim(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) releaseCustomer(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	customer, err := h.customers.Release(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) touchContact(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.customers.TouchContact(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteCustomer(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	if err := h.customers.Delete(c.Request.Context(), id, actor, force); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type batchClaimRequest struct {
	CustomerIDs []int64 `json:"customer_ids" binding:"required,min=1"`
}

func (h *Handler) batchClaim(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req batchClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.customers.BatchClaim(c.Request.Context(), req.CustomerIDs, actor,
		c.GetHeader("Idempotency-Key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) findInactive(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		return
	}

	thresholdDays, err := strconv.Atoi(c.DefaultQuery("threshold_days", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid threshold_days"})
		return
	}

	customers, err := h.customers.FindInactive(c.Request.Context(), thresholdDays)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers, "count": len(customers)})
}

func (h *Handler) slotUsage(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	used, err := h.customers.SlotUsage(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner_id": id,
		"used":     used,
		"limit":    h.customers.ClaimLimit(),
	})
}

func (h *Handler) createOpportunity(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req service.CreateOpportunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	opp, err := h.opportunities.CreateOpportunity(c.Request.Context(), &req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, opp)
}

func (h *Handler) getOpportunity(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	opp, err := h.opportunities.GetOpportunity(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opp)
}

type transitionStageRequest struct {
	Stage      string `json:"stage" binding:"required"`
	LossReason string `json:"loss_reason"`
}

func (h *Handler) transitionStage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req transitionStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	opp, err := h.opportunities.TransitionStage(c.Request.Context(), id, req.Stage, req.LossReason, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opp)
}

func (h *Handler) createQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req service.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	quote, items, err := h.quotes.CreateQuote(c.Request.Context(), &req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"quote": quote, "items": items})
}

func (h *Handler) getQuote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	quote, items, err := h.quotes.GetQuote(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote, "items": items})
}

type replaceItemsRequest struct {
	Items []service.QuoteItemRequest `json:"items" binding:"required,min=1"`
}

func (h *Handler) replaceQuoteItems(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req replaceItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	quote, items, err := h.quotes.ReplaceItems(c.Request.Context(), id, req.Items, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote, "items": items})
}

func (h *Handler) submitQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	quote, err := h.quotes.Submit(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

type decisionRequest struct {
	Comment string `json:"comment"`
	Reason  string `json:"reason"`
}

func (h *Handler) escalateQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req decisionRequest
	_ = c.ShouldBindJSON(&req)

	quote, err := h.quotes.Escalate(c.Request.Context(), id, actor, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) approveQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req decisionRequest
	_ = c.ShouldBindJSON(&req)

	quote, err := h.quotes.Approve(c.Request.Context(), id, actor, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) rejectQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	quote, err := h.quotes.Reject(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) reopenQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	quote, err := h.quotes.Reopen(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) convertQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.quotes.ConvertToOrder(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) copyQuote(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	quote, items, err := h.quotes.Copy(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"quote": quote, "items": items})
}

func (h *Handler) approvalLog(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	entries, err := h.quotes.ApprovalLog(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) lookupPrice(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Query("product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product_id"})
		return
	}
	quantity, err := strconv.Atoi(c.Query("quantity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity"})
		return
	}

	price, err := h.quotes.LookupPrice(c.Request.Context(), productID, quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"quantity":   quantity,
		"unit_price": price,
	})
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
