package quote

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func rec(row int, serial string, qty int, price, discount string, at time.Duration) LineItemRecord {
	p := decimal.RequireFromString(price)
	d := decimal.RequireFromString(discount)
	return LineItemRecord{
		Row:          row,
		Timestamp:    t0.Add(at),
		Customer:     Customer{ID: "C-1", Name: "Acme"},
		Title:        "item",
		Quantity:     qty,
		UnitPrice:    p,
		LineDiscount: d,
		LineSubtotal: LineSubtotal(qty, p, d),
		TaxPercent:   decimal.NewFromInt(10),
		Serial:       serial,
	}
}

func TestAggregateScenarioA(t *testing.T) {
	records := []LineItemRecord{
		rec(2, "SN-0001", 2, "100", "0", 0),
		rec(3, "SN-0001", 1, "50", "10", time.Minute),
	}

	qs := Aggregate(records)

	require.Len(t, qs, 1)
	q := qs[0]
	assert.Equal(t, "SN-0001", q.Serial)
	assert.Equal(t, "240", q.Subtotal.String())
	assert.Equal(t, "10", q.Discount.String())
	assert.Equal(t, "24", q.Tax.String())
	assert.Equal(t, "264", q.Total.String())
	assert.Len(t, q.Items, 2)
	assert.Equal(t, []int{2, 3}, q.Rows())
	assert.Equal(t, t0, q.CreatedAt)
	assert.Equal(t, t0.Add(time.Minute), q.UpdatedAt)
	assert.Equal(t, StatusDraft, q.Status)
}

func TestAggregateSumsArePermutationInvariant(t *testing.T) {
	var records []LineItemRecord
	serials := []string{"SN-0001", "SN-0002", "SN-0003"}
	for i := 0; i < 30; i++ {
		records = append(records, rec(i+2, serials[i%3], i%4+1, "19.99", "0.37", time.Duration(i)*time.Second))
	}

	want := map[string][4]string{}
	for _, q := range Aggregate(records) {
		want[q.Serial] = [4]string{q.Subtotal.String(), q.Tax.String(), q.Discount.String(), q.Total.String()}
	}

	rnd := rand.New(rand.NewSource(7))
	for n := 0; n < 20; n++ {
		shuffled := append([]LineItemRecord(nil), records...)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		for _, q := range Aggregate(shuffled) {
			got := [4]string{q.Subtotal.String(), q.Tax.String(), q.Discount.String(), q.Total.String()}
			assert.Equal(t, want[q.Serial], got, "serial %s", q.Serial)
		}
	}
}

func TestAggregateLatestWinsWithTieOnInputOrder(t *testing.T) {
	a := rec(2, "SN-0005", 1, "1", "0", time.Hour)
	a.Extras.AgentCode = "first"
	b := rec(3, "SN-0005", 1, "1", "0", time.Hour)
	b.Extras.AgentCode = "second"
	c := rec(4, "SN-0005", 1, "1", "0", 0)
	c.Extras.AgentCode = "older"

	q := Aggregate([]LineItemRecord{a, b, c})[0]
	assert.Equal(t, "second", q.AgentCode)

	q = Aggregate([]LineItemRecord{b, a, c})[0]
	assert.Equal(t, "first", q.AgentCode)
}

func TestAggregateUnserializedRowsAreSingletons(t *testing.T) {
	records := []LineItemRecord{
		rec(2, "", 1, "5", "0", 0),
		rec(3, "", 1, "7", "0", time.Second),
		rec(4, "SN-0002", 1, "9", "0", 2*time.Second),
	}

	qs := Aggregate(records)

	require.Len(t, qs, 3)
	// newest first
	assert.Equal(t, "SN-0002", qs[0].Serial)
	assert.Equal(t, "7", qs[1].Subtotal.String())
	assert.Equal(t, "5", qs[2].Subtotal.String())
}

func TestAggregateOrdersByCreatedAtDesc(t *testing.T) {
	records := []LineItemRecord{
		rec(2, "SN-0001", 1, "1", "0", 0),
		rec(3, "SN-0002", 1, "1", "0", time.Hour),
		rec(4, "SN-0001", 1, "1", "0", 2*time.Hour),
	}

	qs := Aggregate(records)

	require.Len(t, qs, 2)
	assert.Equal(t, "SN-0002", qs[0].Serial)
	assert.Equal(t, "SN-0001", qs[1].Serial)
	assert.Equal(t, t0.Add(2*time.Hour), qs[1].UpdatedAt)
}

func TestAggregateDocumentLinkMarksSent(t *testing.T) {
	a := rec(2, "SN-0003", 1, "1", "0", 0)
	b := rec(3, "SN-0003", 1, "1", "0", time.Minute)
	b.DocumentLink = "https://files.test/q.pdf"

	q := Aggregate([]LineItemRecord{a, b})[0]
	assert.Equal(t, StatusSent, q.Status)
	assert.Equal(t, "https://files.test/q.pdf", q.DocumentLink)
}

func TestApplyStatuses(t *testing.T) {
	qs := Aggregate([]LineItemRecord{
		rec(2, "SN-0001", 1, "1", "0", 0),
		rec(3, "SN-0002", 1, "1", "0", 0),
	})

	ApplyStatuses(qs, []StatusEntry{
		{Timestamp: t0.Add(2 * time.Hour), Serial: "SN-0001", Status: StatusApproved},
		{Timestamp: t0.Add(time.Hour), Serial: "SN-0001", Status: StatusRejected},
		{Timestamp: t0, Serial: "SN-0009", Status: StatusApproved},
	})

	q1, ok := Find(qs, "SN-0001")
	require.True(t, ok)
	assert.Equal(t, StatusApproved, q1.Status)

	q2, ok := Find(qs, "SN-0002")
	require.True(t, ok)
	assert.Equal(t, StatusDraft, q2.Status)

	_, ok = Find(qs, "SN-0009")
	assert.False(t, ok)
}
