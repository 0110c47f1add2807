package ledger

import (
	"context"
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"quotedesk/go_backend/internal/domain/asset"
	"quotedesk/go_backend/internal/domain/quote"
	"quotedesk/go_backend/internal/domain/quote/pdf"
)

type PublishResult struct {
	Serial       string `json:"serial"`
	DocumentLink string `json:"document_link"`
	FileName     string `json:"file_name"`
	Rows         []int  `json:"rows"`
}

// PublishDocument compiles the quotation, uploads the PDF and writes its link
// into every row of the quotation found in a fresh read.
func (s *Service) PublishDocument(ctx context.Context, serialNo string, catalog pdf.Catalog) (*PublishResult, error) {
	if s.compiler == nil {
		return nil, errors.New("document compiler is not configured")
	}
	q, err := s.GetQuotation(ctx, serialNo)
	if err != nil {
		return nil, err
	}

	customer, ok, err := s.Customer(ctx, q.CustomerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		customer = q.Customer
	}

	doc, err := s.compiler.Compile(ctx, q, customer, catalog)
	if err != nil {
		return nil, err
	}

	link, err := s.store.UploadAsset(ctx, base64.StdEncoding.EncodeToString(doc.Data), doc.FileName, doc.MimeType, s.cfg.DocumentFolderID)
	if err != nil {
		return nil, &asset.UploadError{FileName: doc.FileName, Reason: "store rejected upload", Err: err}
	}
	if link == "" {
		return nil, &asset.UploadError{FileName: doc.FileName, Reason: "response has no file URL"}
	}

	_, recs, err := s.readLedger(ctx)
	if err != nil {
		return nil, err
	}
	res := &PublishResult{Serial: q.Serial, DocumentLink: link, FileName: doc.FileName}
	for _, r := range recs {
		if r.Serial == q.Serial {
			res.Rows = append(res.Rows, r.Row)
		}
	}
	if len(res.Rows) == 0 {
		return nil, errors.Wrapf(quote.ErrQuotationNotFound, "%s vanished before its link was written", q.Serial)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, row := range res.Rows {
		g.Go(func() error {
			return s.store.UpdateCell(gctx, s.cfg.LedgerSheet, row, quote.ColDocumentLink+1, link)
		})
	}
	if err := g.Wait(); err != nil {
		return res, errors.Wrapf(err, "write document link of %s", q.Serial)
	}

	s.logger(q.Serial).WithFields(logrus.Fields{"rows": len(res.Rows), "file": doc.FileName}).Info("ledger: document published")
	return res, nil
}
