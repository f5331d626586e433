package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/logging"
	"github.com/macrolens/nutriresolve/internal/usecase"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Resolver is the part of the resolution engine the handlers need
type Resolver interface {
	Resolve(ctx context.Context, q domain.Query) (*domain.ResolutionResult, error)
	Invalidate(ctx context.Context, q domain.Query) error
	ClearAll()
	Stats() usecase.Stats
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	resolver Resolver
}

// NewHandler creates a new HTTP handler. A nil resolver makes every
// nutrition endpoint answer 503.
func NewHandler(resolver Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// QueryRequest is the body of the resolve and cache-entry endpoints
type QueryRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// ErrorResponse is returned for every non-2xx answer
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "nutriresolve",
		"version": Version,
	})
}

// Resolve handles POST /api/v1/nutrition/resolve
func (h *Handler) Resolve(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "kind and value are required",
		})
		return
	}

	kind, err := domain.ParseQueryKind(req.Kind)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.resolve(c, domain.Query{Kind: kind, Value: req.Value})
}

// ResolveBarcode handles GET /api/v1/nutrition/barcode/:code
func (h *Handler) ResolveBarcode(c *gin.Context) {
	h.resolve(c, domain.BarcodeQuery(c.Param("code")))
}

// SearchByName handles GET /api/v1/nutrition/search?name=
func (h *Handler) SearchByName(c *gin.Context) {
	h.resolve(c, domain.NameQuery(c.Query("name")))
}

func (h *Handler) resolve(c *gin.Context, q domain.Query) {
	if !h.ready(c) {
		return
	}

	result, err := h.resolver.Resolve(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}

	// Unresolved is a normal answer; the client offers manual entry.
	c.JSON(http.StatusOK, result)
}

// ClearCache handles DELETE /api/v1/cache
func (h *Handler) ClearCache(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	h.resolver.ClearAll()
	c.Status(http.StatusNoContent)
}

// InvalidateEntry handles DELETE /api/v1/cache/entry
func (h *Handler) InvalidateEntry(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "kind and value are required",
		})
		return
	}
	kind, err := domain.ParseQueryKind(req.Kind)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.resolver.Invalidate(c.Request.Context(), domain.Query{Kind: kind, Value: req.Value}); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	c.JSON(http.StatusOK, h.resolver.Stats())
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.resolver != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:   "service_unavailable",
		Message: "nutrition resolver not configured",
	})
	return false
}

// writeError maps domain errors to HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_query",
			Message: err.Error(),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error:   "timeout",
			Message: "request cancelled before a result was available",
		})
	default:
		logging.Log.WithError(err).WithField("path", c.FullPath()).Error("[HTTP] request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "an unexpected error occurred",
		})
	}
}
