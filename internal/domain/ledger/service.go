// Package ledger keeps logical quotations in sync with the rows of the
// remote ledger sheet.
//
// The row store has no transactions. Every multi-row mutation is a sequence
// of single-row steps, each preceded by a fresh read and a content check of
// the rows it touches. A transport failure stops the sequence and leaves the
// steps already taken in place; callers re-read to reconcile.
package ledger

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"quotedesk/go_backend/internal/domain/asset"
	"quotedesk/go_backend/internal/domain/quote"
	"quotedesk/go_backend/internal/domain/quote/pdf"
	"quotedesk/go_backend/internal/domain/quote/serial"
)

var ErrInvalidInput = errors.New("invalid input")

type RowStore interface {
	ReadAll(ctx context.Context, sheet string) ([][]string, error)
	AppendRow(ctx context.Context, sheet string, values []string) error
	UpdateCell(ctx context.Context, sheet string, row, col int, value string) error
	DeleteRow(ctx context.Context, sheet string, row int) error
	UploadAsset(ctx context.Context, base64Data, fileName, mimeType, folderID string) (string, error)
}

type SerialSource interface {
	Allocate(ctx context.Context) serial.Allocation
	// Release hands back an allocation no row was written for.
	Release(ctx context.Context, alloc serial.Allocation) error
}

type DocumentCompiler interface {
	Compile(ctx context.Context, q quote.Quotation, customer quote.Customer, catalog pdf.Catalog) (*pdf.Document, error)
}

type Config struct {
	LedgerSheet      string
	CustomerSheet    string
	StatusSheet      string
	DocumentFolderID string
	// Concurrency bounds parallel uploads and cell writes within one call.
	Concurrency int
}

type Service struct {
	store    RowStore
	serials  SerialSource
	assets   *asset.Resolver
	compiler DocumentCompiler
	cfg      Config
	now      func() time.Time
	log      logrus.FieldLogger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(store RowStore, serials SerialSource, assets *asset.Resolver, compiler DocumentCompiler, cfg Config, log logrus.FieldLogger, opts ...Option) *Service {
	if cfg.LedgerSheet == "" {
		cfg.LedgerSheet = "Quotations"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	s := &Service{
		store:    store,
		serials:  serials,
		assets:   assets,
		compiler: compiler,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ItemInput is one line item as submitted by a caller. Row links the item to
// an existing ledger row; zero means a new item. ReadTitle, when set, is the
// title the linked row had when the caller read it; an edit fails as stale if
// the row now carries another.
type ItemInput struct {
	Row        int             `json:"row,omitempty" validate:"gte=0"`
	ReadTitle  string          `json:"read_title,omitempty"`
	Title      string          `json:"title" validate:"required"`
	ImageRef   string          `json:"image_ref,omitempty"`
	Quantity   int             `json:"quantity" validate:"gte=0"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Discount   decimal.Decimal `json:"discount"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
}

type ItemFailure struct {
	// Item is the index in the submitted items, -1 for a removal.
	Item int
	Row  int
	Err  error
}

func (f ItemFailure) Error() string {
	if f.Item < 0 {
		return errors.Wrapf(f.Err, "remove row %d", f.Row).Error()
	}
	return errors.Wrapf(f.Err, "item %d (row %d)", f.Item, f.Row).Error()
}

func (f ItemFailure) Unwrap() error { return f.Err }

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return errors.Wrap(ErrInvalidInput, "at least one item is required")
	}
	for i, it := range items {
		switch {
		case strings.TrimSpace(it.Title) == "":
			return errors.Wrapf(ErrInvalidInput, "item %d: title is required", i)
		case it.Quantity < 0:
			return errors.Wrapf(ErrInvalidInput, "item %d: quantity is negative", i)
		case it.UnitPrice.IsNegative(), it.Discount.IsNegative(), it.TaxPercent.IsNegative():
			return errors.Wrapf(ErrInvalidInput, "item %d: amounts must not be negative", i)
		case it.Row < 0:
			return errors.Wrapf(ErrInvalidInput, "item %d: row %d", i, it.Row)
		}
	}
	return nil
}

// record builds the ledger row for an item. The image reference must already
// be normalized.
func record(it ItemInput, imageRef, serialNo string, customer quote.Customer, extras quote.Extras, at time.Time) quote.LineItemRecord {
	return quote.LineItemRecord{
		Timestamp:    at,
		Customer:     customer,
		Title:        strings.TrimSpace(it.Title),
		ImageRef:     imageRef,
		Quantity:     it.Quantity,
		UnitPrice:    it.UnitPrice,
		LineDiscount: it.Discount,
		LineSubtotal: quote.LineSubtotal(it.Quantity, it.UnitPrice, it.Discount),
		TaxPercent:   it.TaxPercent,
		Serial:       serialNo,
		Extras:       extras,
	}
}

// readLedger returns the decoded data rows of the ledger, header skipped,
// with blank rows left out.
func (s *Service) readLedger(ctx context.Context) ([][]string, []quote.LineItemRecord, error) {
	rows, err := s.store.ReadAll(ctx, s.cfg.LedgerSheet)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read ledger")
	}
	var recs []quote.LineItemRecord
	for i := 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		recs = append(recs, quote.DecodeRecord(rows[i], i+1))
	}
	return rows, recs, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// rowAt returns the raw cells of a 1-based sheet row.
func rowAt(rows [][]string, row int) ([]string, bool) {
	if row < 2 || row > len(rows) {
		return nil, false
	}
	return rows[row-1], true
}

func joinFailures(failed []ItemFailure) error {
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, f := range failed {
		errs[i] = f
	}
	return stderrors.Join(errs...)
}
