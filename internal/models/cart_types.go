package models

import (
	"sort"
	"time"
)

// Cart is a user's sparse product -> quantity map. A product is present only
// while its quantity is strictly positive.
type Cart struct {
	UserID int64         `json:"userId"`
	Items  map[int64]int `json:"cartData"`
}

// CartItem defines the struct for the 'cart_items' table
type CartItem struct {
	UserID    int64     `json:"userId" db:"user_id"`
	ProductID int64     `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func NewCart(userID int64) Cart {
	return Cart{UserID: userID, Items: map[int64]int{}}
}

// Set stores qty for productID, dropping the key when qty is not positive.
func (c *Cart) Set(productID int64, qty int) {
	if c.Items == nil {
		c.Items = map[int64]int{}
	}
	if qty <= 0 {
		delete(c.Items, productID)
		return
	}
	c.Items[productID] = qty
}

func (c Cart) Quantity(productID int64) int {
	return c.Items[productID]
}

func (c Cart) TotalQuantity() int {
	total := 0
	for _, qty := range c.Items {
		if qty > 0 {
			total += qty
		}
	}
	return total
}

func (c Cart) IsEmpty() bool {
	return c.TotalQuantity() == 0
}

// ProductIDs returns the products with a positive quantity in ascending order.
func (c Cart) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.Items))
	for id, qty := range c.Items {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns a copy that shares no state with c.
func (c Cart) Clone() Cart {
	out := NewCart(c.UserID)
	for id, qty := range c.Items {
		out.Set(id, qty)
	}
	return out
}
