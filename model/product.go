package model

// Product is a catalog entry. Prices are whole currency units.
type Product struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	OldPrice    int64  `json:"oldPrice,omitempty"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	InStock     bool   `json:"inStock"`
}
