package domain

import "time"

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	Total     int64      `bson:"total" json:"total"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ProductID int64     `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// Item returns the line for productID and its index, or -1 when absent.
func (c *Cart) Item(productID int64) (CartItem, int) {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return item, i
		}
	}
	return CartItem{}, -1
}

// Lines converts the cart into reservation lines in insertion order.
func (c *Cart) Lines() []Line {
	lines := make([]Line, len(c.Items))
	for i, item := range c.Items {
		lines[i] = Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}

// Line is a product and quantity pair, the unit the inventory guard reserves.
type Line struct {
	ProductID int64
	Quantity  int
}
