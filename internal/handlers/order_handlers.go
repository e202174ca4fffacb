package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/checkout"
	"github.com/kennethcatiis/ecommerce-platform/internal/lifecycle"
	"github.com/kennethcatiis/ecommerce-platform/internal/middleware"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

// IdempotencyHeader carries the client's retry token for checkout.
const IdempotencyHeader = "Idempotency-Key"

//
// --- Checkout ---
//

type CheckoutInput struct {
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"omitempty,oneof=card paypal cash"`
}

// Checkout is the handler for POST /v1/checkout
func (h *Handlers) Checkout(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.bindError(c, err)
		return
	}

	res, err := h.Processor.Checkout(c.Request.Context(), checkout.Request{
		UserID:          userID,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
		IdempotencyKey:  c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success":       true,
		"message":       "Order placed successfully",
		"transactionId": res.Transaction.TransactionID,
		"transaction":   res.Transaction,
	})
}

//
// --- Transaction Retrieval ---
//

// ListTransactions is the handler for GET /v1/transactions (admin only).
func (h *Handlers) ListTransactions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(c, fmt.Errorf("%w: limit must be an integer", apperr.ErrValidation))
			return
		}
		limit = n
	}

	list, err := h.Ledger.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": list})
}

// MyTransactions is the handler for POST /v1/transactions/mine
func (h *Handlers) MyTransactions(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	list, err := h.Ledger.FindByUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": list})
}

// GetTransaction is the handler for GET /v1/transactions/:id. Customers only
// see their own transactions; anything else reads as not found.
func (h *Handlers) GetTransaction(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	t, err := h.Ledger.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if t.UserID != userID && !middleware.IsAdmin(c) {
		h.respondError(c, fmt.Errorf("transaction %s: %w", t.TransactionID, apperr.ErrNotFound))
		return
	}
	respondTransaction(c, t)
}

//
// --- Status Updates (admin only) ---
//

type UpdateTransactionInput struct {
	TransactionID string  `json:"transactionId" binding:"required"`
	Status        string  `json:"status" binding:"required"`
	Notes         *string `json:"notes"`
}

// UpdateTransaction is the handler for POST /v1/transactions/update
func (h *Handlers) UpdateTransaction(c *gin.Context) {
	var input UpdateTransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.bindError(c, err)
		return
	}

	t, err := h.Ledger.Update(c.Request.Context(), input.TransactionID, input.Status, input.Notes)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidTransition) {
			h.logger().Info("status update rejected",
				"transaction_id", input.TransactionID, "requested", input.Status)
		}
		h.respondError(c, err)
		return
	}
	respondTransaction(c, t)
}

func respondTransaction(c *gin.Context, t *models.Transaction) {
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"transaction":        t,
		"allowedTransitions": lifecycle.AllowedNext(t.Status),
		"terminal":           lifecycle.IsTerminal(t.Status),
	})
}
