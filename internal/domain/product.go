package domain

import "time"

// Product is a tracked product page. Price holds the canonical display
// string, e.g. "£ 25.00".
type Product struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ProductName string     `json:"product_name"`
	URL         string     `json:"url"`
	Price       string     `json:"price"`
	IsAvailable *bool      `json:"is_available,omitempty"`
	ImageURL    string     `json:"img_url,omitempty"`
	DateChecked *time.Time `json:"date_checked,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ScrapedProduct is a raw snapshot read from a product page.
type ScrapedProduct struct {
	Name        string    `json:"name"`
	ProductName string    `json:"product_name"`
	URL         string    `json:"url"`
	Price       string    `json:"price"`
	ImageURL    string    `json:"img_url"`
	IsAvailable *bool     `json:"is_available"`
	DateChecked time.Time `json:"date_checked"`
}

// Complete reports whether every page-derived field was found.
func (s ScrapedProduct) Complete() bool {
	return s.ProductName != "" && s.Price != "" && s.ImageURL != "" && s.IsAvailable != nil
}

// Apply merges a snapshot into the product. A complete snapshot replaces
// all page-derived fields; an incomplete one only overwrites the fields it
// carries.
func (p *Product) Apply(s ScrapedProduct) {
	checked := s.DateChecked
	if s.Complete() {
		p.ProductName = s.ProductName
		p.Price = s.Price
		p.ImageURL = s.ImageURL
		p.IsAvailable = s.IsAvailable
		p.DateChecked = &checked
		return
	}

	if s.ProductName != "" {
		p.ProductName = s.ProductName
	}
	if s.Price != "" {
		p.Price = s.Price
	}
	if s.ImageURL != "" {
		p.ImageURL = s.ImageURL
	}
	if s.IsAvailable != nil {
		p.IsAvailable = s.IsAvailable
	}
	if !checked.IsZero() {
		p.DateChecked = &checked
	}
}

type CreateProductRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
