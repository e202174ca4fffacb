package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/cart"
	"github.com/kennethcatiis/ecommerce-platform/internal/checkout"
	"github.com/kennethcatiis/ecommerce-platform/internal/ledger"
	"github.com/kennethcatiis/ecommerce-platform/internal/middleware"
)

// Handlers holds every dependency the HTTP layer needs.
type Handlers struct {
	Cart      *cart.Service
	Processor *checkout.Processor
	Ledger    *ledger.Ledger

	Tokens middleware.TokenValidator
	Users  middleware.UserDirectory
	Log    *slog.Logger
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindAuth:               http.StatusUnauthorized,
	apperr.KindForbidden:          http.StatusForbidden,
	apperr.KindNotFound:           http.StatusNotFound,
	apperr.KindNotInCart:          http.StatusOK,
	apperr.KindEmptyCart:          http.StatusBadRequest,
	apperr.KindProductUnavailable: http.StatusConflict,
	apperr.KindInvalidTransition:  http.StatusConflict,
	apperr.KindValidation:         http.StatusBadRequest,
	apperr.KindDuplicateID:        http.StatusConflict,
	apperr.KindConflict:           http.StatusConflict,
	apperr.KindStorage:            http.StatusServiceUnavailable,
	apperr.KindInternal:           http.StatusInternalServerError,
}

var messageByKind = map[apperr.Kind]string{
	apperr.KindAuth:      "Authentication required",
	apperr.KindForbidden: "Access denied",
	apperr.KindNotFound:  "Not found",
	apperr.KindNotInCart: "Item not in cart",
	apperr.KindEmptyCart: "Your cart is empty",
	apperr.KindConflict:  "The request conflicted with a concurrent update, please retry",
	apperr.KindStorage:   "Service temporarily unavailable, please retry",
	apperr.KindInternal:  "Internal server error",
}

// respondError writes the error body for err: success=false, a
// machine-readable kind and a human-readable message.
func (h *Handlers) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusByKind[kind]

	message, ok := messageByKind[kind]
	if !ok {
		message = err.Error()
	}

	switch {
	case status >= http.StatusInternalServerError:
		h.logger().Error("request failed", "path", c.FullPath(), "kind", kind, "error", err)
	case kind != apperr.KindNotInCart:
		h.logger().Warn("request rejected", "path", c.FullPath(), "kind", kind, "error", err)
	}

	body := gin.H{
		"success": false,
		"error":   kind,
		"message": message,
	}
	if apperr.Retryable(err) {
		body["retryable"] = true
	}
	c.JSON(status, body)
}

func (h *Handlers) bindError(c *gin.Context, err error) {
	h.respondError(c, fmt.Errorf("%w: %s", apperr.ErrValidation, err.Error()))
}

func (h *Handlers) currentUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.respondError(c, apperr.ErrAuth)
	}
	return userID, ok
}

func (h *Handlers) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}
