package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zhejian/url-shortener/qrform/internal/middleware"
	"github.com/zhejian/url-shortener/qrform/internal/model"
	"github.com/zhejian/url-shortener/qrform/internal/payload"
	"github.com/zhejian/url-shortener/qrform/internal/service"
)

// Handler holds HTTP handlers and dependencies.
// It receives interfaces rather than concrete implementations for testability.
type Handler struct {
	forms  service.FormServiceInterface
	db     DBInterface
	cache  CacheInterface
	logger *slog.Logger
}

// DBInterface defines the database operations needed by the handler.
type DBInterface interface {
	Ping(ctx context.Context) error
}

// CacheInterface defines the cache operations needed by the handler.
type CacheInterface interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a new handler instance with the provided dependencies.
func NewHandler(forms service.FormServiceInterface, db DBInterface, cache CacheInterface, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		forms:  forms,
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// RegisterRoutes registers all route definitions on the given Gin engine.
// The caller adds middleware before calling this method; the API routes
// expect middleware.Session and middleware.Auth to have run.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/form", h.getForm)                  // Form schema for the caller
		v1.POST("/qr", h.createQR)                  // Submit the form
		v1.GET("/qr/:code", h.getResult)            // Stored result, for copy
		v1.DELETE("/qr/:code", h.removeResult)      // Drop from this session's history
		v1.GET("/qr/:code/image.png", h.downloadQR) // PNG download
		v1.GET("/history", h.history)               // Recent codes of this session
	}
}

// healthCheck handles GET /health
// Response codes:
//   - 200 OK: All dependencies are healthy
//   - 503 Service Unavailable: One or more dependencies are down
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	cacheErr := h.cache.Ping(ctx)
	dbErr := h.db.Ping(ctx)

	status := "ok"
	code := http.StatusOK
	deps := gin.H{"cache": "up", "database": "up"}

	if cacheErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["cache"] = "down"
	}
	if dbErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["database"] = "down"
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

// getForm handles GET /api/v1/form?kind=
// Response codes:
//   - 200 OK: Schema of kinds and inputs available to the caller
//   - 400 Bad Request: Unknown kind for a signed-in caller
func (h *Handler) getForm(c *gin.Context) {
	schema, err := h.forms.Form(middleware.Caller(c), c.Query("kind"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

// createQR handles POST /api/v1/qr
// Request body: payload.FormState (JSON)
// Response codes:
//   - 201 Created: Code created upstream
//   - 400 Bad Request: Invalid body, missing field, unknown kind or rejected by the creation service
//   - 403 Forbidden: Guest used a signed-in feature
//   - 502 Bad Gateway: Creation service answered with something unusable
//   - 503 Service Unavailable: Creation service unreachable or breaker open
func (h *Handler) createQR(c *gin.Context) {
	ctx := c.Request.Context()
	var form payload.FormState

	if err := c.ShouldBindJSON(&form); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.forms.Submit(ctx, service.SubmitInput{
		Form:      form,
		Caller:    middleware.Caller(c),
		SessionID: middleware.SessionID(c),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getResult handles GET /api/v1/qr/:code
// Response codes:
//   - 200 OK: Stored result
//   - 404 Not Found: Code was not created through this form
func (h *Handler) getResult(c *gin.Context) {
	resp, err := h.forms.Result(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// removeResult handles DELETE /api/v1/qr/:code
// Only the browser session that created the code may remove it.
// Response codes:
//   - 204 No Content: Removed from history
//   - 404 Not Found: Unknown code or created by another session
func (h *Handler) removeResult(c *gin.Context) {
	if err := h.forms.Remove(c.Request.Context(), middleware.SessionID(c), c.Param("code")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// downloadQR handles GET /api/v1/qr/:code/image.png?size=
// Response codes:
//   - 200 OK: PNG attachment
//   - 400 Bad Request: Size is not a number or out of range
//   - 404 Not Found: Code was not created through this form
func (h *Handler) downloadQR(c *gin.Context) {
	code := c.Param("code")

	size := 0
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.errorResponse(c, http.StatusBadRequest, "Invalid size")
			return
		}
		size = n
	}

	png, err := h.forms.QRCode(c.Request.Context(), code, size)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="qr-%s.png"`, code))
	c.Data(http.StatusOK, "image/png", png)
}

// history handles GET /api/v1/history?limit=
// Response codes:
//   - 200 OK: Newest results of the caller's browser session
func (h *Handler) history(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	list, err := h.forms.History(c.Request.Context(), middleware.SessionID(c), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": list})
}

// handleError maps service and validation errors to HTTP responses
func (h *Handler) handleError(c *gin.Context, err error) {
	var rejection *service.RejectionError

	switch {
	case errors.Is(err, payload.ErrPermissionDenied):
		h.loginResponse(c, err.Error())
	case errors.As(err, &rejection) && rejection.NeedLogin:
		h.loginResponse(c, rejection.Message)
	case errors.Is(err, payload.ErrMissingField), errors.Is(err, payload.ErrUnsupportedKind):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCreationRejected):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidSize):
		h.errorResponse(c, http.StatusBadRequest, "Invalid size")
	case errors.Is(err, service.ErrResultNotFound):
		h.errorResponse(c, http.StatusNotFound, "QR code not found")
	case errors.Is(err, service.ErrCreationUnavailable):
		h.errorResponse(c, http.StatusServiceUnavailable, "Creation service unavailable")
	case errors.Is(err, service.ErrCreationFailed):
		h.logger.ErrorContext(c.Request.Context(), "creation service failure",
			slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusBadGateway, "Creation service error")
	default:
		h.logger.ErrorContext(c.Request.Context(), "unexpected error",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
	_ = c.Error(err)
}

func (h *Handler) loginResponse(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, model.ErrorResponse{
		Error:     http.StatusText(http.StatusForbidden),
		Message:   message,
		NeedLogin: true,
	})
}

// errorResponse sends a standardized JSON error response.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, model.ErrorResponse{
		Error:   http.StatusText(status), // e.g., "Bad Request", "Not Found"
		Message: message,
	})
}
