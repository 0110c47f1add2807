package quote

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger sheet columns, 0-based as read. Writes via UpdateCell use col+1.
const (
	ColTimestamp = iota
	ColCustomerID
	ColCustomerName
	ColPhone
	ColAltPhone
	ColEmail
	ColTitle
	ColImageRef
	ColQuantity
	ColUnitPrice
	ColLineDiscount
	ColLineSubtotal
	ColTaxPercent
	ColDocumentLink
	ColSerial
	ColAgentCode
	ColReferrerCode
	ColReferrerName
	ColReferrerPhone

	NumColumns
)

// Customer sheet columns.
const (
	CustColID = iota
	CustColName
	CustColPhone
	CustColAltPhone
	CustColEmail

	NumCustomerColumns
)

// Status sheet columns.
const (
	StatusColTimestamp = iota
	StatusColSerial
	StatusColStatus

	NumStatusColumns
)

// Layouts seen in legacy rows, tried in order after RFC 3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006-01-02",
	"1/2/2006",
	"02.01.2006",
}

// DecodeRecord maps a ledger row onto a LineItemRecord. Malformed cells decode
// to zero values; it never fails.
func DecodeRecord(row []string, rowIndex int) LineItemRecord {
	r := LineItemRecord{
		Row:       rowIndex,
		Timestamp: ParseTimestamp(cell(row, ColTimestamp)),
		Customer: Customer{
			ID:       cell(row, ColCustomerID),
			Name:     cell(row, ColCustomerName),
			Phone:    cell(row, ColPhone),
			AltPhone: cell(row, ColAltPhone),
			Email:    cell(row, ColEmail),
		},
		Title:        cell(row, ColTitle),
		ImageRef:     cell(row, ColImageRef),
		Quantity:     ParseQuantity(cell(row, ColQuantity)),
		UnitPrice:    ParseDecimal(cell(row, ColUnitPrice)),
		LineDiscount: ParseDecimal(cell(row, ColLineDiscount)),
		TaxPercent:   ParseDecimal(cell(row, ColTaxPercent)),
		DocumentLink: cell(row, ColDocumentLink),
		Serial:       cell(row, ColSerial),
		Extras: Extras{
			AgentCode:     cell(row, ColAgentCode),
			ReferrerCode:  cell(row, ColReferrerCode),
			ReferrerName:  cell(row, ColReferrerName),
			ReferrerPhone: cell(row, ColReferrerPhone),
		},
	}
	if raw := cell(row, ColLineSubtotal); raw != "" {
		r.LineSubtotal = ParseDecimal(raw)
	} else {
		r.LineSubtotal = LineSubtotal(r.Quantity, r.UnitPrice, r.LineDiscount)
	}
	return r
}

// EncodeRecord returns the cells of r from column fromColumn to the last
// ledger column.
func EncodeRecord(r LineItemRecord, fromColumn int) []string {
	if fromColumn < 0 || fromColumn >= NumColumns {
		return nil
	}
	out := make([]string, NumColumns)
	out[ColTimestamp] = FormatTimestamp(r.Timestamp)
	out[ColCustomerID] = r.Customer.ID
	out[ColCustomerName] = r.Customer.Name
	out[ColPhone] = r.Customer.Phone
	out[ColAltPhone] = r.Customer.AltPhone
	out[ColEmail] = r.Customer.Email
	out[ColTitle] = r.Title
	out[ColImageRef] = r.ImageRef
	out[ColQuantity] = strconv.Itoa(r.Quantity)
	out[ColUnitPrice] = r.UnitPrice.String()
	out[ColLineDiscount] = r.LineDiscount.String()
	out[ColLineSubtotal] = r.LineSubtotal.String()
	out[ColTaxPercent] = r.TaxPercent.String()
	out[ColDocumentLink] = r.DocumentLink
	out[ColSerial] = r.Serial
	out[ColAgentCode] = r.Extras.AgentCode
	out[ColReferrerCode] = r.Extras.ReferrerCode
	out[ColReferrerName] = r.Extras.ReferrerName
	out[ColReferrerPhone] = r.Extras.ReferrerPhone
	return out[fromColumn:]
}

func DecodeCustomer(row []string) Customer {
	return Customer{
		ID:       cell(row, CustColID),
		Name:     cell(row, CustColName),
		Phone:    cell(row, CustColPhone),
		AltPhone: cell(row, CustColAltPhone),
		Email:    cell(row, CustColEmail),
	}
}

func EncodeCustomer(c Customer) []string {
	return []string{c.ID, c.Name, c.Phone, c.AltPhone, c.Email}
}

type StatusEntry struct {
	Timestamp time.Time
	Serial    string
	Status    Status
}

// DecodeStatus reports false for rows whose status is not a known value.
func DecodeStatus(row []string) (StatusEntry, bool) {
	st, ok := ParseStatus(strings.ToLower(cell(row, StatusColStatus)))
	if !ok {
		return StatusEntry{}, false
	}
	return StatusEntry{
		Timestamp: ParseTimestamp(cell(row, StatusColTimestamp)),
		Serial:    cell(row, StatusColSerial),
		Status:    st,
	}, true
}

func EncodeStatus(e StatusEntry) []string {
	return []string{FormatTimestamp(e.Timestamp), e.Serial, string(e.Status)}
}

func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp returns the zero time for empty or unrecognized input.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ParseDecimal tolerates currency symbols, spaces and thousands separators.
// Anything else decodes to zero.
func ParseDecimal(s string) decimal.Decimal {
	s = normalizeNumber(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseQuantity truncates fractional quantities and clamps negatives to zero.
func ParseQuantity(s string) int {
	d := ParseDecimal(s)
	if d.IsNegative() {
		return 0
	}
	return int(d.IntPart())
}

// normalizeNumber reduces a money cell to a plain decimal literal. Currency
// text before the first digit and after the last one is dropped; a '-'
// before the first digit makes the value negative. The later of '.' and ','
// is the decimal separator when both appear.
func normalizeNumber(s string) string {
	first := strings.IndexFunc(s, isDigit)
	if first < 0 {
		return ""
	}
	last := strings.LastIndexFunc(s, isDigit)

	var b strings.Builder
	if strings.Contains(s[:first], "-") {
		b.WriteByte('-')
	}
	for _, r := range s[first : last+1] {
		switch {
		case isDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case r == '-':
			return ""
		}
	}
	out := b.String()

	dot, comma := strings.LastIndex(out, "."), strings.LastIndex(out, ",")
	switch {
	case comma < 0:
		return out
	case dot > comma:
		return strings.ReplaceAll(out, ",", "")
	case dot >= 0:
		return strings.Replace(strings.ReplaceAll(out, ".", ""), ",", ".", 1)
	}
	// "1,200" is a thousands separator, "12,5" a decimal comma.
	if len(out)-comma-1 == 3 {
		return strings.ReplaceAll(out, ",", "")
	}
	return strings.Replace(out, ",", ".", 1)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
