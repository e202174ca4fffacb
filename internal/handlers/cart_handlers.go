package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/cart"
)

//
// --- Cart Handlers ---
//

// CartItemInput is the body of cart/add and cart/remove.
type CartItemInput struct {
	ProductID int64 `json:"productId" binding:"required,gt=0"`
}

// AddToCart is the handler for POST /v1/cart/add
func (h *Handlers) AddToCart(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var input CartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.bindError(c, err)
		return
	}

	change, err := h.Cart.AddItem(c.Request.Context(), userID, input.ProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondChange(c, change)
}

// RemoveFromCart is the handler for POST /v1/cart/remove
func (h *Handlers) RemoveFromCart(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var input CartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.bindError(c, err)
		return
	}

	change, err := h.Cart.RemoveItem(c.Request.Context(), userID, input.ProductID)
	if errors.Is(err, apperr.ErrNotInCart) {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   apperr.KindNotInCart,
			"message": "Item not in cart",
		})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondChange(c, change)
}

// GetCart is the handler for POST /v1/cart/get
func (h *Handlers) GetCart(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	current, err := h.Cart.GetCart(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"cartData": current.Items,
	})
}

func respondChange(c *gin.Context, change *cart.Change) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"cartData": change.Cart.Items,
		"itemId":   change.ProductID,
		"quantity": change.Quantity,
	})
}
