package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"quotedesk/go_backend/internal/domain/asset"
	"quotedesk/go_backend/internal/domain/ledger"
	"quotedesk/go_backend/internal/domain/quote"
	"quotedesk/go_backend/internal/domain/quote/pdf"
	"quotedesk/go_backend/internal/infra/sheets"
)

type Ledger interface {
	ListQuotations(ctx context.Context) ([]quote.Quotation, error)
	GetQuotation(ctx context.Context, serialNo string) (quote.Quotation, error)
	CreateQuotation(ctx context.Context, in ledger.CreateInput) (*ledger.CreateResult, error)
	EditQuotation(ctx context.Context, serialNo string, in ledger.EditInput) (*ledger.EditResult, error)
	PublishDocument(ctx context.Context, serialNo string, catalog pdf.Catalog) (*ledger.PublishResult, error)
	SetStatus(ctx context.Context, serialNo string, status quote.Status) error
	Customers(ctx context.Context) ([]quote.Customer, error)
}

type Assets interface {
	Upload(ctx context.Context, ref asset.Reference, fileName string) (asset.Reference, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Ledger  Ledger
	Assets  Assets
	Catalog pdf.Catalog
	// DB is the optional serial reservation store checked by Health.
	DB  Pinger
	Log logrus.FieldLogger
}

func New(l Ledger, assets Assets, catalog pdf.Catalog, db Pinger, log logrus.FieldLogger) *Handlers {
	return &Handlers{Ledger: l, Assets: assets, Catalog: catalog, DB: db, Log: log}
}

var validate = validator.New()

type errorResponse struct {
	Error  string      `json:"error"`
	Result interface{} `json:"result,omitempty"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.WithError(err).Error("http: write response")
	}
}

// writeError maps err onto a status code. result, when non-nil, reports the
// steps that completed before the failure.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error, result interface{}) {
	status := statusFor(err)
	entry := h.Log.WithError(err).WithFields(logrus.Fields{"path": r.URL.Path, "status": status})
	if status >= 500 {
		entry.Error("http: request failed")
	} else {
		entry.Info("http: request rejected")
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Result: result})
}

// decodeValid decodes a JSON body of at most limit bytes into dst and checks
// its validate tags. It writes the 400 response itself and reports false on
// failure.
func (h *Handlers) decodeValid(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(dst); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	err := validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		h.writeError(w, r, err, nil)
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  "validation failed",
		"fields": fields,
	})
	return false
}

func statusFor(err error) int {
	var (
		upErr        *asset.UploadError
		transportErr *sheets.TransportError
		malformedErr *sheets.MalformedResponseError
	)
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, quote.ErrStaleIndex):
		return http.StatusConflict
	case errors.Is(err, quote.ErrQuotationNotFound), errors.Is(err, quote.ErrRowNotFound):
		return http.StatusNotFound
	case errors.As(err, &upErr), errors.As(err, &transportErr), errors.As(err, &malformedErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
