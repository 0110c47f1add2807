package pdf

import (
	"time"

	"quotedesk/go_backend/internal/domain/quote"
)

type Generator interface {
	Generate(in Input) ([]byte, error)
}

// Image is an image ready for embedding. Format is the PDF image type,
// "JPG" or "PNG".
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

type Input struct {
	Quotation   quote.Quotation
	Customer    quote.Customer
	Catalog     Catalog
	Images      map[int]Image // by item index
	GeneratedAt time.Time
}

// Catalog holds the seller's letterhead and per-product fallbacks keyed by
// item title.
type Catalog struct {
	CompanyName string             `json:"company_name"`
	Address     string             `json:"address"`
	Phone       string             `json:"phone"`
	Email       string             `json:"email"`
	Currency    string             `json:"currency"`
	Footer      string             `json:"footer"`
	Products    map[string]Product `json:"products,omitempty"`
}

type Product struct {
	Description string `json:"description"`
	ImageRef    string `json:"image_ref"`
}

type Document struct {
	FileName string
	MimeType string
	Data     []byte
}
