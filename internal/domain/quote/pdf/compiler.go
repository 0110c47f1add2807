package pdf

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"quotedesk/go_backend/internal/domain/asset"
	"quotedesk/go_backend/internal/domain/quote"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Option func(*Compiler)

func WithImagePolicy(p ImagePolicy) Option { return func(c *Compiler) { c.policy = p } }

func WithImageSize(px int) Option { return func(c *Compiler) { c.size = px } }

func WithClock(now func() time.Time) Option { return func(c *Compiler) { c.now = now } }

// Compiler turns a quotation into a PDF. Uploading the result and writing the
// link back to the ledger is left to the caller.
type Compiler struct {
	gen         Generator
	fetch       Fetcher
	assets      *asset.Resolver
	policy      ImagePolicy
	size        int
	concurrency int
	now         func() time.Time
	log         logrus.FieldLogger
}

func NewCompiler(gen Generator, fetch Fetcher, assets *asset.Resolver, log logrus.FieldLogger, opts ...Option) *Compiler {
	c := &Compiler{
		gen:         gen,
		fetch:       fetch,
		assets:      assets,
		policy:      DefaultImagePolicy(),
		size:        800,
		concurrency: 4,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile renders q. Images that cannot be fetched through any source are
// left out; only a rendering failure fails the compilation.
func (c *Compiler) Compile(ctx context.Context, q quote.Quotation, customer quote.Customer, catalog Catalog) (*Document, error) {
	if customer.ID == "" && customer.Name == "" {
		customer = q.Customer
	}

	var (
		mu     sync.Mutex
		images = make(map[int]Image, len(q.Items))
	)
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i, it := range q.Items {
		ref := it.ImageRef
		if ref == "" {
			ref = catalog.Products[it.Title].ImageRef
		}
		if ref == "" {
			continue
		}
		g.Go(func() error {
			img, ok := c.loadImage(ctx, ref)
			if !ok {
				c.log.WithFields(logrus.Fields{"serial": q.Serial, "item": i, "ref": ref}).Warn("pdf: image omitted")
				return nil
			}
			mu.Lock()
			images[i] = img
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	data, err := c.gen.Generate(Input{
		Quotation:   q,
		Customer:    customer,
		Catalog:     catalog,
		Images:      images,
		GeneratedAt: c.now(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "render quotation %s", q.Serial)
	}
	if len(data) == 0 {
		return nil, errors.Errorf("render quotation %s: empty document", q.Serial)
	}

	c.log.WithFields(logrus.Fields{"serial": q.Serial, "bytes": len(data), "images": len(images)}).Info("pdf: compiled")
	return &Document{
		FileName: FileName(q.Serial, customer.Name),
		MimeType: "application/pdf",
		Data:     data,
	}, nil
}

// loadImage walks the source cascade for ref: canonical thumbnail, alternate
// id URL, raw download URL.
func (c *Compiler) loadImage(ctx context.Context, ref string) (Image, bool) {
	cls := c.assets.Classify(ref)
	if cls.Kind == asset.KindInline {
		img, err := c.policy.Prepare(cls.Data)
		if err != nil {
			c.log.WithError(err).Debug("pdf: inline image unusable")
			return Image{}, false
		}
		return img, true
	}

	for _, src := range c.sources(cls) {
		data, err := c.fetch.Fetch(ctx, src)
		if err != nil {
			c.log.WithError(err).WithField("url", src).Debug("pdf: image source failed")
			continue
		}
		img, err := c.policy.Prepare(data)
		if err != nil {
			c.log.WithError(err).WithField("url", src).Debug("pdf: image undecodable")
			continue
		}
		return img, true
	}
	return Image{}, false
}

func (c *Compiler) sources(ref asset.Reference) []string {
	switch ref.Kind {
	case asset.KindRemote:
		return []string{
			c.assets.DisplayURL(ref.Raw, c.size),
			c.assets.AlternateURL(ref.SourceID, c.size),
			c.assets.DownloadURL(ref.SourceID),
		}
	case asset.KindOpaque:
		lower := strings.ToLower(ref.Raw)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return []string{ref.Raw}
		}
	}
	return nil
}

// FileName suggests a download name such as "Quotation-SN-0042-Acme-Interiors.pdf".
func FileName(serial, customerName string) string {
	parts := []string{"Quotation"}
	if s := sanitize(serial); s != "" {
		parts = append(parts, s)
	}
	if s := sanitize(customerName); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "-") + ".pdf"
}

func sanitize(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteRune('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
