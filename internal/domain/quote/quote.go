package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusDraft, StatusSent, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

type Customer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	AltPhone string `json:"alt_phone"`
	Email    string `json:"email"`
}

// Extras are the per-quotation scalars repeated on every row.
type Extras struct {
	AgentCode     string `json:"agent_code,omitempty"`
	ReferrerCode  string `json:"referrer_code,omitempty"`
	ReferrerName  string `json:"referrer_name,omitempty"`
	ReferrerPhone string `json:"referrer_phone,omitempty"`
}

// LineItemRecord is one physical row of the ledger sheet. Row is the
// 1-based sheet row (header counted) the record was read from; it is the
// record's only identity and is never written back.
type LineItemRecord struct {
	Row          int
	Timestamp    time.Time
	Customer     Customer
	Title        string
	ImageRef     string
	Quantity     int
	UnitPrice    decimal.Decimal
	LineDiscount decimal.Decimal
	LineSubtotal decimal.Decimal
	TaxPercent   decimal.Decimal
	DocumentLink string
	Serial       string
	Extras       Extras
}

func (r LineItemRecord) Tax() decimal.Decimal {
	return r.LineSubtotal.Mul(r.TaxPercent).Div(hundred)
}

// Item is the view of a LineItemRecord inside a Quotation.
type Item struct {
	Row        int             `json:"row"`
	Title      string          `json:"title"`
	ImageRef   string          `json:"image_ref,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Discount   decimal.Decimal `json:"discount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
	Tax        decimal.Decimal `json:"tax"`
}

type Quotation struct {
	Serial       string    `json:"serial"`
	CustomerID   string    `json:"customer_id"`
	Customer     Customer  `json:"customer"`
	Items        []Item    `json:"items"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	DocumentLink string    `json:"document_link,omitempty"`
	Extras

	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Rows returns the sheet rows currently backing the quotation.
func (q Quotation) Rows() []int {
	rows := make([]int, 0, len(q.Items))
	for _, it := range q.Items {
		rows = append(rows, it.Row)
	}
	return rows
}

var hundred = decimal.NewFromInt(100)

// LineSubtotal is quantity*unitPrice - discount.
func LineSubtotal(qty int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Sub(discount)
}
