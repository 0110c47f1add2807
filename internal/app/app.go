package app

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"quotedesk/go_backend/internal/app/config"
	apphttp "quotedesk/go_backend/internal/app/http"
	"quotedesk/go_backend/internal/app/http/handlers"
	"quotedesk/go_backend/internal/domain/asset"
	"quotedesk/go_backend/internal/domain/ledger"
	"quotedesk/go_backend/internal/domain/quote/pdf"
	"quotedesk/go_backend/internal/domain/quote/pdf/gofpdf"
	"quotedesk/go_backend/internal/domain/quote/serial"
	"quotedesk/go_backend/internal/infra/db/postgres"
	"quotedesk/go_backend/internal/infra/fetch"
	"quotedesk/go_backend/internal/infra/sheets"
)

const reserveAttempts = 5

// App is the wired service graph. Close releases the database pool if one
// was opened.
type App struct {
	Config  config.Config
	Log     *logrus.Logger
	Ledger  *ledger.Service
	Assets  *asset.Resolver
	Catalog pdf.Catalog
	DB      *postgres.DB
}

func NewLogger(level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	log.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "", "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("log format %q", format)
	}
	return log, nil
}

func Build(ctx context.Context, cfg config.Config, log *logrus.Logger) (*App, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := sheets.New(cfg.SheetsEndpoint, cfg.SheetsContainerID, httpClient, log)

	assets := asset.NewResolver(asset.Config{
		ThumbnailBase: cfg.ThumbnailBaseURL,
		AlternateBase: cfg.AltImageBaseURL,
		DownloadBase:  cfg.DownloadBaseURL,
		FolderID:      cfg.ImageFolderID,
		DefaultSize:   cfg.ThumbnailSize,
	}, store, log)

	a := &App{Config: cfg, Log: log, Assets: assets, Catalog: CatalogFrom(cfg.Company)}

	var allocOpts []serial.Option
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "db")
		}
		serials := postgres.NewSerials(db.Pool)
		if err := serials.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.DB = db
		allocOpts = append(allocOpts, serial.WithReserver(serials, reserveAttempts))
		log.Info("app: serial reservation enabled")
	}
	allocator := serial.New(store, cfg.LedgerSheet, log, allocOpts...)

	compiler := pdf.NewCompiler(
		gofpdf.New(cfg.FontDir),
		fetch.New(httpClient, 0),
		assets,
		log,
	)

	a.Ledger = ledger.New(store, allocator, assets, compiler, ledger.Config{
		LedgerSheet:      cfg.LedgerSheet,
		CustomerSheet:    cfg.CustomerSheet,
		StatusSheet:      cfg.StatusSheet,
		DocumentFolderID: cfg.DocumentFolderID,
	}, log)
	return a, nil
}

func CatalogFrom(c config.Company) pdf.Catalog {
	return pdf.Catalog{
		CompanyName: c.Name,
		Address:     c.Address,
		Phone:       c.Phone,
		Email:       c.Email,
		Currency:    c.Currency,
		Footer:      c.Footer,
	}
}

func (a *App) Handler() http.Handler {
	var db handlers.Pinger
	if a.DB != nil {
		db = a.DB
	}
	h := handlers.New(a.Ledger, a.Assets, a.Catalog, db, a.Log)
	return apphttp.NewRouter(a.Config, h, a.Log)
}

// Serve runs the HTTP API until ctx is cancelled, then drains in-flight
// requests.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.Log.WithField("addr", a.Config.HTTPAddr).Info("app: listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.Log.Info("app: shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
