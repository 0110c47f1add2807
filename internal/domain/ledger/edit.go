package ledger

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"quotedesk/go_backend/internal/domain/quote"
)

type EditInput struct {
	// CustomerID empty keeps the customer currently on the rows.
	CustomerID string       `json:"customer_id,omitempty"`
	Items      []ItemInput  `json:"items" validate:"required,min=1,dive"`
	Extras     quote.Extras `json:"extras"`
}

type EditResult struct {
	Serial   string        `json:"serial"`
	Updated  []int         `json:"updated"`
	Appended int           `json:"appended"`
	Deleted  []int         `json:"deleted"`
	Failed   []ItemFailure `json:"-"`
}

// EditQuotation brings the rows of serialNo in line with in. Items carrying a
// Row are updated in place, items without one are appended, and rows of the
// quotation no item refers to are deleted, highest row first.
//
// A failed image upload blocks only that item. A linked row that is gone or
// no longer matches means the caller's view of the ledger is stale: nothing
// is written and the error matches quote.ErrStaleIndex. Item failures are
// collected in EditResult.Failed and joined into the returned error. A store
// failure stops the sequence with the steps taken so far left in place.
func (s *Service) EditQuotation(ctx context.Context, serialNo string, in EditInput) (*EditResult, error) {
	serialNo = strings.TrimSpace(serialNo)
	if serialNo == "" {
		return nil, errors.Wrap(ErrInvalidInput, "serial is required")
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(in.Items))
	for i, it := range in.Items {
		if it.Row == 0 {
			continue
		}
		if seen[it.Row] {
			return nil, errors.Wrapf(ErrInvalidInput, "item %d: row %d referenced twice", i, it.Row)
		}
		seen[it.Row] = true
	}

	refs, uploadErrs := s.uploadAll(ctx, in.Items)

	rows, recs, err := s.readLedger(ctx)
	if err != nil {
		return nil, err
	}
	current := make(map[int]quote.LineItemRecord)
	var latest quote.LineItemRecord
	for _, r := range recs {
		if r.Serial != serialNo {
			continue
		}
		current[r.Row] = r
		if !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	if len(current) == 0 {
		return nil, errors.Wrap(quote.ErrQuotationNotFound, serialNo)
	}

	customer := latest.Customer
	if id := strings.TrimSpace(in.CustomerID); id != "" && id != customer.ID {
		if customer, err = s.snapshot(ctx, id); err != nil {
			return nil, err
		}
	}

	log := s.logger(serialNo)
	res := &EditResult{Serial: serialNo}
	fail := func(item, row int, err error) {
		log.WithError(err).WithFields(logrus.Fields{"item": item, "row": row}).Warn("ledger: item skipped")
		res.Failed = append(res.Failed, ItemFailure{Item: item, Row: row, Err: err})
	}

	linked := make(map[int]quote.LineItemRecord)
	stale := false
	for i, it := range in.Items {
		if uploadErrs[i] != nil {
			fail(i, it.Row, uploadErrs[i])
			continue
		}
		if it.Row == 0 {
			continue
		}
		old, err := verifyRow(rows, it, serialNo)
		if err != nil {
			fail(i, it.Row, err)
			stale = true
			continue
		}
		linked[i] = old
	}
	if stale {
		err := errors.Wrapf(quote.ErrStaleIndex, "rows of %s changed since they were read, nothing written", serialNo)
		return res, stderrors.Join(err, joinFailures(res.Failed))
	}

	for i, it := range in.Items {
		old, ok := linked[i]
		if !ok {
			continue
		}
		want := record(it, refs[i], serialNo, customer, in.Extras, old.Timestamp)
		want.DocumentLink = old.DocumentLink
		changed, err := s.updateRow(ctx, it.Row, old, want)
		if err != nil {
			return res, stderrors.Join(errors.Wrapf(err, "update row %d of %s", it.Row, serialNo), joinFailures(res.Failed))
		}
		if changed {
			res.Updated = append(res.Updated, it.Row)
		}
	}

	at := s.now()
	for i, it := range in.Items {
		if it.Row != 0 || uploadErrs[i] != nil {
			continue
		}
		rec := record(it, refs[i], serialNo, customer, in.Extras, at)
		if err := s.store.AppendRow(ctx, s.cfg.LedgerSheet, quote.EncodeRecord(rec, 0)); err != nil {
			return res, stderrors.Join(errors.Wrapf(err, "append item %d of %s", i, serialNo), joinFailures(res.Failed))
		}
		res.Appended++
	}

	var remove []int
	for row := range current {
		if !seen[row] {
			remove = append(remove, row)
		}
	}
	if len(remove) > 0 {
		if err := s.deleteRows(ctx, serialNo, rows, remove, res, fail); err != nil {
			return res, stderrors.Join(err, joinFailures(res.Failed))
		}
	}

	log.WithFields(logrus.Fields{
		"updated":  len(res.Updated),
		"appended": res.Appended,
		"deleted":  len(res.Deleted),
		"failed":   len(res.Failed),
	}).Info("ledger: quotation edited")
	return res, joinFailures(res.Failed)
}

// uploadAll normalizes every item's image concurrently. Failures are
// reported per item.
func (s *Service) uploadAll(ctx context.Context, items []ItemInput) ([]string, []error) {
	refs := make([]string, len(items))
	errs := make([]error, len(items))
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for i, it := range items {
		g.Go(func() error {
			refs[i], errs[i] = s.assets.Normalize(ctx, it.ImageRef, "")
			return nil
		})
	}
	_ = g.Wait()
	return refs, errs
}

// verifyRow checks that the row an item links to still belongs to serialNo
// and, when the caller sent it, still carries the title it was read with.
func verifyRow(rows [][]string, it ItemInput, serialNo string) (quote.LineItemRecord, error) {
	cells, ok := rowAt(rows, it.Row)
	if !ok {
		return quote.LineItemRecord{}, errors.Wrapf(quote.ErrRowNotFound, "row %d", it.Row)
	}
	rec := quote.DecodeRecord(cells, it.Row)
	if rec.Serial != serialNo {
		return quote.LineItemRecord{}, errors.Wrapf(quote.ErrStaleIndex, "row %d holds %q", it.Row, rec.Serial)
	}
	if want := strings.TrimSpace(it.ReadTitle); want != "" && rec.Title != want {
		return quote.LineItemRecord{}, errors.Wrapf(quote.ErrStaleIndex, "row %d holds %q, read as %q", it.Row, rec.Title, want)
	}
	return rec, nil
}

// updateRow writes the cells of want that differ from old, concurrently.
func (s *Service) updateRow(ctx context.Context, row int, old, want quote.LineItemRecord) (bool, error) {
	before := quote.EncodeRecord(old, 0)
	after := quote.EncodeRecord(want, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	changed := false
	for col := range after {
		if after[col] == before[col] {
			continue
		}
		changed = true
		g.Go(func() error {
			return s.store.UpdateCell(gctx, s.cfg.LedgerSheet, row, col+1, after[col])
		})
	}
	return changed, g.Wait()
}

// deleteRows removes the given rows of serialNo. Each row is re-located by
// content in a fresh read, so rows that moved since snapshot was taken are
// still deleted correctly; rows that changed or vanished are skipped.
func (s *Service) deleteRows(ctx context.Context, serialNo string, snapshot [][]string, remove []int, res *EditResult, fail func(item, row int, err error)) error {
	fresh, _, err := s.readLedger(ctx)
	if err != nil {
		return err
	}

	claimed := make(map[int]bool, len(remove))
	var targets []int
	for _, row := range remove {
		want, _ := rowAt(snapshot, row)
		at, err := locate(fresh, row, want, serialNo, claimed)
		if err != nil {
			fail(-1, row, err)
			continue
		}
		claimed[at] = true
		targets = append(targets, at)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(targets)))
	for _, row := range targets {
		if err := s.store.DeleteRow(ctx, s.cfg.LedgerSheet, row); err != nil {
			return errors.Wrapf(err, "delete row %d of %s", row, serialNo)
		}
		res.Deleted = append(res.Deleted, row)
	}
	return nil
}

// locate finds want in rows, preferring its old position. It fails with
// ErrStaleIndex when the content is found nowhere or more than once, and
// with ErrRowNotFound when no row of serialNo is left at all.
func locate(rows [][]string, row int, want []string, serialNo string, claimed map[int]bool) (int, error) {
	if cells, ok := rowAt(rows, row); ok && !claimed[row] && sameCells(cells, want) {
		return row, nil
	}
	found, anyLeft := 0, false
	matches := 0
	for i := 1; i < len(rows); i++ {
		at := i + 1
		if quote.DecodeRecord(rows[i], at).Serial == serialNo {
			anyLeft = true
		}
		if claimed[at] || !sameCells(rows[i], want) {
			continue
		}
		found = at
		matches++
	}
	switch {
	case matches == 1:
		return found, nil
	case !anyLeft:
		return 0, errors.Wrapf(quote.ErrRowNotFound, "row %d", row)
	default:
		return 0, errors.Wrapf(quote.ErrStaleIndex, "row %d no longer matches", row)
	}
}

func sameCells(a, b []string) bool {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var x, y string
		if i < len(a) {
			x = strings.TrimSpace(a[i])
		}
		if i < len(b) {
			y = strings.TrimSpace(b[i])
		}
		if x != y {
			return false
		}
	}
	return true
}
