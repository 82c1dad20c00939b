package domain

import "time"

// Product is the catalog read model. Price is in minor units.
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	UpdatedAt   time.Time `json:"updated_at"`
}
