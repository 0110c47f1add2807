// Package serial allocates quotation serial numbers by scanning the ledger
// for the highest serial in use.
//
// Scan-then-append is not atomic: two writers that scan the same ledger
// state get the same serial. Without a Reserver that race is preserved as-is.
// With one, each candidate is reserved before use and conflicts move on to
// the next number. A reserved serial whose quotation was never written must
// be handed back with Release, or it stays claimed.
package serial

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"quotedesk/go_backend/internal/domain/quote"
)

const defaultAttempts = 5

type Allocation struct {
	Serial   string
	Degraded bool
	// Cause is the scan failure that forced a degraded allocation, if any.
	Cause error
	// Reserved is set when Serial was claimed through the Reserver.
	Reserved bool
}

// Err is non-nil for degraded allocations and matches
// quote.ErrSerialAllocationDegraded.
func (a Allocation) Err() error {
	if !a.Degraded {
		return nil
	}
	if a.Cause != nil {
		return errors.Wrapf(quote.ErrSerialAllocationDegraded, "%s: %v", a.Serial, a.Cause)
	}
	return errors.Wrap(quote.ErrSerialAllocationDegraded, a.Serial)
}

// Next returns the serial following the highest SN-#### found in the serial
// column of rows. Rows that do not hold a well-formed serial are ignored.
// When none is found the allocation is degraded to a clock-derived serial.
func Next(rows [][]string, now time.Time) Allocation {
	max, found := Highest(rows)
	if !found {
		return Allocation{Serial: Fallback(now), Degraded: true}
	}
	return Allocation{Serial: quote.FormatSerial(max + 1)}
}

func Highest(rows [][]string) (int, bool) {
	max, found := 0, false
	for _, row := range rows {
		if quote.ColSerial >= len(row) {
			continue
		}
		n, ok := quote.ParseSerial(row[quote.ColSerial])
		if !ok {
			continue
		}
		if !found || n > max {
			max, found = n, true
		}
	}
	return max, found
}

// Fallback is SN- followed by the last six digits of the epoch millisecond
// count. It guarantees progress, not uniqueness or ordering.
func Fallback(now time.Time) string {
	return fmt.Sprintf("%s%06d", quote.SerialPrefix, now.UnixMilli()%1000000)
}

type RowReader interface {
	ReadAll(ctx context.Context, sheet string) ([][]string, error)
}

// Reserver claims a serial across writers. Reserve reports false when the
// serial was already claimed; Release drops a claim.
type Reserver interface {
	Reserve(ctx context.Context, serial string) (bool, error)
	Release(ctx context.Context, serial string) error
}

type Option func(*Allocator)

func WithReserver(r Reserver, attempts int) Option {
	return func(a *Allocator) {
		a.reserver = r
		if attempts > 0 {
			a.attempts = attempts
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

type Allocator struct {
	rows     RowReader
	sheet    string
	reserver Reserver
	attempts int
	now      func() time.Time
	log      logrus.FieldLogger
}

func New(rows RowReader, sheet string, log logrus.FieldLogger, opts ...Option) *Allocator {
	a := &Allocator{
		rows:     rows,
		sheet:    sheet,
		attempts: defaultAttempts,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate reads the ledger fresh and returns the next serial. It never
// fails: scan errors degrade to the clock fallback and are reported through
// the returned Allocation.
func (a *Allocator) Allocate(ctx context.Context) Allocation {
	rows, err := a.rows.ReadAll(ctx, a.sheet)
	if err != nil {
		alloc := Allocation{Serial: Fallback(a.now()), Degraded: true, Cause: err}
		a.warnDegraded(alloc)
		return alloc
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}

	alloc := Next(rows, a.now())
	if alloc.Degraded {
		a.warnDegraded(alloc)
		return alloc
	}
	if a.reserver == nil {
		return alloc
	}
	return a.reserve(ctx, alloc)
}

func (a *Allocator) reserve(ctx context.Context, alloc Allocation) Allocation {
	n, _ := quote.ParseSerial(alloc.Serial)
	for i := 0; i < a.attempts; i++ {
		candidate := quote.FormatSerial(n + i)
		ok, err := a.reserver.Reserve(ctx, candidate)
		if err != nil {
			a.log.WithError(err).WithField("serial", candidate).Warn("serial: reservation unavailable, using unreserved serial")
			return Allocation{Serial: candidate}
		}
		if ok {
			return Allocation{Serial: candidate, Reserved: true}
		}
		a.log.WithField("serial", candidate).Info("serial: already reserved, trying next")
	}
	out := Allocation{
		Serial:   Fallback(a.now()),
		Degraded: true,
		Cause:    errors.Errorf("no free serial after %d reservation attempts from %s", a.attempts, alloc.Serial),
	}
	a.warnDegraded(out)
	return out
}

func (a *Allocator) warnDegraded(alloc Allocation) {
	entry := a.log.WithField("serial", alloc.Serial)
	if alloc.Cause != nil {
		entry = entry.WithError(alloc.Cause)
	}
	entry.Warn("serial: degraded allocation from clock fallback")
}

// Release hands back the reservation behind alloc so the serial can be
// allocated again. Allocations that were not reserved are left alone.
func (a *Allocator) Release(ctx context.Context, alloc Allocation) error {
	if !alloc.Reserved || a.reserver == nil {
		return nil
	}
	if err := a.reserver.Release(ctx, alloc.Serial); err != nil {
		return errors.Wrapf(err, "release %s", alloc.Serial)
	}
	a.log.WithField("serial", alloc.Serial).Info("serial: reservation released")
	return nil
}
