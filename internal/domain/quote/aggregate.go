package quote

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type group struct {
	key     string
	records []LineItemRecord
}

// Aggregate regroups ledger records into quotations keyed by serial. Records
// without a serial each form their own quotation. Sums are exact and do not
// depend on input order; scalar fields come from the record with the latest
// timestamp, the last such record in input order on ties. The result is
// ordered by CreatedAt, newest first.
func Aggregate(records []LineItemRecord) []Quotation {
	var groups []*group
	index := map[string]*group{}
	for i, r := range records {
		key := r.Serial
		if key == "" {
			key = fmt.Sprintf("\x00unserialized-%d", i)
		}
		g, ok := index[key]
		if !ok {
			g = &group{key: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, r)
	}

	out := make([]Quotation, 0, len(groups))
	for _, g := range groups {
		out = append(out, buildQuotation(g.records))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func buildQuotation(records []LineItemRecord) Quotation {
	q := Quotation{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Tax:      decimal.Zero,
		Items:    make([]Item, 0, len(records)),
	}

	latest := 0
	for i, r := range records {
		tax := r.Tax()
		q.Items = append(q.Items, Item{
			Row:        r.Row,
			Title:      r.Title,
			ImageRef:   r.ImageRef,
			Quantity:   r.Quantity,
			UnitPrice:  r.UnitPrice,
			Discount:   r.LineDiscount,
			Subtotal:   r.LineSubtotal,
			TaxPercent: r.TaxPercent,
			Tax:        tax,
		})
		q.Subtotal = q.Subtotal.Add(r.LineSubtotal)
		q.Discount = q.Discount.Add(r.LineDiscount)
		q.Tax = q.Tax.Add(tax)

		if i == 0 || r.Timestamp.Before(q.CreatedAt) {
			q.CreatedAt = r.Timestamp
		}
		if i == 0 || !r.Timestamp.Before(q.UpdatedAt) {
			q.UpdatedAt = r.Timestamp
			latest = i
		}
	}
	q.Total = q.Subtotal.Add(q.Tax)

	last := records[latest]
	q.Serial = last.Serial
	q.CustomerID = last.Customer.ID
	q.Customer = last.Customer
	q.Extras = last.Extras
	q.DocumentLink = last.DocumentLink
	if q.DocumentLink == "" {
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].DocumentLink != "" {
				q.DocumentLink = records[i].DocumentLink
				break
			}
		}
	}
	q.Status = StatusDraft
	if last.DocumentLink != "" {
		q.Status = StatusSent
	}
	return q
}

// ApplyStatuses overrides derived statuses with the latest explicit entry
// per serial. Ties keep the later entry in input order.
func ApplyStatuses(qs []Quotation, entries []StatusEntry) {
	latest := map[string]StatusEntry{}
	for _, e := range entries {
		if e.Serial == "" {
			continue
		}
		if prev, ok := latest[e.Serial]; ok && e.Timestamp.Before(prev.Timestamp) {
			continue
		}
		latest[e.Serial] = e
	}
	for i := range qs {
		if e, ok := latest[qs[i].Serial]; ok && qs[i].Serial != "" {
			qs[i].Status = e.Status
		}
	}
}

// Find returns the quotation with the given serial.
func Find(qs []Quotation, serial string) (Quotation, bool) {
	for _, q := range qs {
		if q.Serial != "" && q.Serial == serial {
			return q, true
		}
	}
	return Quotation{}, false
}
