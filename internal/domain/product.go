package domain

import "time"

const productStatusPublished = "publish"

// ProductRef points at a catalog product with a requested quantity.
type ProductRef struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"qty,omitempty"`
}

// Product is a catalog entry as read from the store backend.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       Money
	HasPrice    bool
	URL         string
	ImageURL    string
	Status      string
	InStock     bool
}

// Purchasable reports whether the product can be put on an order right now.
func (p Product) Purchasable() bool {
	return p.Status == productStatusPublished && p.InStock && p.HasPrice
}

// Card renders the product for display in the chat widget.
func (p Product) Card(currencySymbol string) ProductCard {
	return ProductCard{
		ID:    p.ID,
		Name:  p.Name,
		Price: p.Price.Format(currencySymbol),
		URL:   p.URL,
		Image: p.ImageURL,
	}
}

type ProductCard struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
	URL   string `json:"url"`
	Image string `json:"image"`
}

type KnowledgeItem struct {
	ID          int64
	Title       string
	Body        string
	PublishedAt time.Time
}
