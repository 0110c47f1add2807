package ledger

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"quotedesk/go_backend/internal/domain/quote"
)

// ListQuotations reads the whole ledger and returns it aggregated, newest
// first, with recorded statuses applied.
func (s *Service) ListQuotations(ctx context.Context) ([]quote.Quotation, error) {
	_, recs, err := s.readLedger(ctx)
	if err != nil {
		return nil, err
	}
	qs := quote.Aggregate(recs)

	if s.cfg.StatusSheet != "" {
		entries, err := s.statuses(ctx)
		if err != nil {
			return nil, err
		}
		quote.ApplyStatuses(qs, entries)
	}
	return qs, nil
}

func (s *Service) GetQuotation(ctx context.Context, serialNo string) (quote.Quotation, error) {
	qs, err := s.ListQuotations(ctx)
	if err != nil {
		return quote.Quotation{}, err
	}
	serialNo = strings.TrimSpace(serialNo)
	q, ok := quote.Find(qs, serialNo)
	if !ok {
		return quote.Quotation{}, errors.Wrap(quote.ErrQuotationNotFound, serialNo)
	}
	return q, nil
}

// SetStatus records status for serialNo in the status sheet. The newest entry
// for a serial wins over the status derived from its rows.
func (s *Service) SetStatus(ctx context.Context, serialNo string, status quote.Status) error {
	if s.cfg.StatusSheet == "" {
		return errors.Wrap(ErrInvalidInput, "status tracking is not configured")
	}
	if _, ok := quote.ParseStatus(string(status)); !ok {
		return errors.Wrapf(ErrInvalidInput, "unknown status %q", status)
	}
	if _, err := s.GetQuotation(ctx, serialNo); err != nil {
		return err
	}

	entry := quote.StatusEntry{Timestamp: s.now(), Serial: serialNo, Status: status}
	if err := s.store.AppendRow(ctx, s.cfg.StatusSheet, quote.EncodeStatus(entry)); err != nil {
		return errors.Wrapf(err, "record status of %s", serialNo)
	}
	s.logger(serialNo).WithField("status", status).Info("ledger: status set")
	return nil
}

func (s *Service) statuses(ctx context.Context) ([]quote.StatusEntry, error) {
	rows, err := s.store.ReadAll(ctx, s.cfg.StatusSheet)
	if err != nil {
		return nil, errors.Wrap(err, "read statuses")
	}
	var out []quote.StatusEntry
	for i := 1; i < len(rows); i++ {
		if e, ok := quote.DecodeStatus(rows[i]); ok && e.Serial != "" {
			out = append(out, e)
		}
	}
	return out, nil
}
