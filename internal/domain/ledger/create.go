package ledger

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"quotedesk/go_backend/internal/domain/quote"
)

type CreateInput struct {
	CustomerID string       `json:"customer_id" validate:"required"`
	Items      []ItemInput  `json:"items" validate:"required,min=1,dive"`
	Extras     quote.Extras `json:"extras"`
}

type CreateResult struct {
	Serial string `json:"serial"`
	// Degraded is set when the serial came from the clock fallback and may
	// not follow the ledger's sequence.
	Degraded bool `json:"degraded"`
	Rows     int  `json:"rows"`
}

// CreateQuotation appends one row per item under a newly allocated serial.
// Inline images are uploaded before anything is written; a failed upload
// aborts the whole call. When not even the first row is written the serial
// is released.
func (s *Service) CreateQuotation(ctx context.Context, in CreateInput) (*CreateResult, error) {
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	if in.CustomerID == "" {
		return nil, errors.Wrap(ErrInvalidInput, "customer id is required")
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	for i, it := range in.Items {
		if it.Row != 0 {
			return nil, errors.Wrapf(ErrInvalidInput, "item %d: new quotations cannot reference rows", i)
		}
	}

	customer, err := s.snapshot(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	refs := make([]string, len(in.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, it := range in.Items {
		g.Go(func() error {
			ref, err := s.assets.Normalize(gctx, it.ImageRef, "")
			if err != nil {
				return errors.Wrapf(err, "item %d image", i)
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	alloc := s.serials.Allocate(ctx)
	log := s.logger(alloc.Serial)
	res := &CreateResult{Serial: alloc.Serial, Degraded: alloc.Degraded}

	at := s.now()
	for i, it := range in.Items {
		rec := record(it, refs[i], alloc.Serial, customer, in.Extras, at)
		if err := s.store.AppendRow(ctx, s.cfg.LedgerSheet, quote.EncodeRecord(rec, 0)); err != nil {
			log.WithError(err).WithField("appended", res.Rows).Error("ledger: create stopped")
			if res.Rows == 0 {
				if relErr := s.serials.Release(ctx, alloc); relErr != nil {
					log.WithError(relErr).Warn("ledger: serial stays reserved")
				}
			}
			return res, errors.Wrapf(err, "append item %d of %s", i, alloc.Serial)
		}
		res.Rows++
	}

	log.WithFields(logrus.Fields{"rows": res.Rows, "degraded": res.Degraded}).Info("ledger: quotation created")
	return res, nil
}
