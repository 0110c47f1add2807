package ledger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"quotedesk/go_backend/internal/domain/quote"
)

// Customers returns every customer of the customer sheet. Rows without an id
// are skipped.
func (s *Service) Customers(ctx context.Context) ([]quote.Customer, error) {
	if s.cfg.CustomerSheet == "" {
		return nil, nil
	}
	rows, err := s.store.ReadAll(ctx, s.cfg.CustomerSheet)
	if err != nil {
		return nil, errors.Wrap(err, "read customers")
	}
	out := make([]quote.Customer, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		c := quote.DecodeCustomer(rows[i])
		if c.ID == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Customer looks id up. The second result is false for an unknown id.
func (s *Service) Customer(ctx context.Context, id string) (quote.Customer, bool, error) {
	customers, err := s.Customers(ctx)
	if err != nil {
		return quote.Customer{}, false, err
	}
	for _, c := range customers {
		if c.ID == id {
			return c, true, nil
		}
	}
	return quote.Customer{}, false, nil
}

// snapshot returns the customer details copied onto ledger rows. An id that
// no longer resolves keeps the rows writable with an id-only snapshot.
func (s *Service) snapshot(ctx context.Context, id string) (quote.Customer, error) {
	c, ok, err := s.Customer(ctx, id)
	if err != nil {
		return quote.Customer{}, err
	}
	if !ok {
		if s.cfg.CustomerSheet != "" {
			s.log.WithField("customer_id", id).Warn("ledger: customer not found, storing id only")
		}
		return quote.Customer{ID: id}, nil
	}
	return c, nil
}

func (s *Service) logger(serialNo string) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{"serial": serialNo, "sheet": s.cfg.LedgerSheet})
}
