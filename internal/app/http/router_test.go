package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotedesk/go_backend/internal/app/config"
	"quotedesk/go_backend/internal/app/http/handlers"
	"quotedesk/go_backend/internal/domain/asset"
	"quotedesk/go_backend/internal/domain/ledger"
	"quotedesk/go_backend/internal/domain/quote"
	"quotedesk/go_backend/internal/domain/quote/pdf"
	"quotedesk/go_backend/internal/infra/sheets"
)

const token = "secret"

type fakeLedger struct {
	created    ledger.CreateInput
	editSerial string
	edit       *ledger.EditResult
	editErr    error
	status     quote.Status
	catalog    pdf.Catalog
	err        error
}

func (f *fakeLedger) ListQuotations(context.Context) ([]quote.Quotation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []quote.Quotation{{Serial: "SN-0001", Status: quote.StatusDraft, Total: decimal.NewFromInt(264)}}, nil
}

func (f *fakeLedger) GetQuotation(_ context.Context, serialNo string) (quote.Quotation, error) {
	if serialNo != "SN-0001" {
		return quote.Quotation{}, errors.Wrap(quote.ErrQuotationNotFound, serialNo)
	}
	return quote.Quotation{Serial: serialNo}, nil
}

func (f *fakeLedger) CreateQuotation(_ context.Context, in ledger.CreateInput) (*ledger.CreateResult, error) {
	f.created = in
	if f.err != nil {
		return nil, f.err
	}
	return &ledger.CreateResult{Serial: "SN-0002", Rows: len(in.Items)}, nil
}

func (f *fakeLedger) EditQuotation(_ context.Context, serialNo string, _ ledger.EditInput) (*ledger.EditResult, error) {
	f.editSerial = serialNo
	return f.edit, f.editErr
}

func (f *fakeLedger) PublishDocument(_ context.Context, serialNo string, catalog pdf.Catalog) (*ledger.PublishResult, error) {
	f.catalog = catalog
	if f.err != nil {
		return nil, f.err
	}
	return &ledger.PublishResult{Serial: serialNo, DocumentLink: "https://drive.google.com/file/d/DOC/view"}, nil
}

func (f *fakeLedger) SetStatus(_ context.Context, _ string, status quote.Status) error {
	f.status = status
	return f.err
}

func (f *fakeLedger) Customers(context.Context) ([]quote.Customer, error) {
	return nil, f.err
}

type fakeAssets struct {
	got asset.Reference
	err error
}

func (f *fakeAssets) Upload(_ context.Context, ref asset.Reference, _ string) (asset.Reference, error) {
	f.got = ref
	if f.err != nil {
		return asset.Reference{}, f.err
	}
	return asset.Reference{Kind: asset.KindRemote, URL: "https://drive.google.com/thumbnail?id=NEW&sz=w400", SourceID: "NEW"}, nil
}

func newServer(t *testing.T, l *fakeLedger, a *fakeAssets) *httptest.Server {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	cfg := config.Config{InternalToken: token, CORSAllowOrigin: "*"}
	h := handlers.New(l, a, pdf.Catalog{CompanyName: "Quote Desk"}, nil, log)
	srv := httptest.NewServer(NewRouter(cfg, h, log))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Internal-Token", token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthNeedsNoToken(t *testing.T) {
	srv := newServer(t, &fakeLedger{}, &fakeAssets{})

	resp, err := srv.Client().Get(srv.URL + "/health")

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutesRequireToken(t *testing.T) {
	srv := newServer(t, &fakeLedger{}, &fakeAssets{})

	resp, err := srv.Client().Get(srv.URL + "/v1/quotations")

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListQuotations(t *testing.T) {
	srv := newServer(t, &fakeLedger{}, &fakeAssets{})

	resp := do(t, srv, http.MethodGet, "/v1/quotations", "", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var qs []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&qs))
	require.Len(t, qs, 1)
	assert.Equal(t, "SN-0001", qs[0]["serial"])
	assert.Equal(t, "264", qs[0]["total"])
}

func TestGetQuotationNotFound(t *testing.T) {
	srv := newServer(t, &fakeLedger{}, &fakeAssets{})

	resp := do(t, srv, http.MethodGet, "/v1/quotations/SN-0404", "", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateQuotation(t *testing.T) {
	l := &fakeLedger{}
	srv := newServer(t, l, &fakeAssets{})
	body := `{"customer_id":"C1","items":[{"title":"Chair","quantity":2,"unit_price":"100","tax_percent":10}]}`

	resp := do(t, srv, http.MethodPost, "/v1/quotations", "application/json", []byte(body))

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "SN-0002", decode(t, resp)["serial"])
	require.Len(t, l.created.Items, 1)
	assert.True(t, l.created.Items[0].UnitPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, l.created.Items[0].TaxPercent.Equal(decimal.NewFromInt(10)))
}

func TestCreateQuotationErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"invalid":   {errors.Wrap(ledger.ErrInvalidInput, "no items"), http.StatusBadRequest},
		"upload":    {&asset.UploadError{FileName: "x.png", Reason: "rejected"}, http.StatusBadGateway},
		"transport": {errors.Wrap(&sheets.TransportError{Op: "insert", StatusCode: 500}, "append"), http.StatusBadGateway},
		"malformed": {&sheets.MalformedResponseError{Op: "read"}, http.StatusBadGateway},
		"other":     {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, c := range cases {
		srv := newServer(t, &fakeLedger{err: c.err}, &fakeAssets{})
		resp := do(t, srv, http.MethodPost, "/v1/quotations", "application/json", []byte(`{"customer_id":"C1","items":[{"title":"Chair","quantity":1}]}`))
		assert.Equal(t, c.want, resp.StatusCode, name)
	}

	srv := newServer(t, &fakeLedger{}, &fakeAssets{})
	resp := do(t, srv, http.MethodPost, "/v1/quotations", "application/json", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateQuotationValidatesBody(t *testing.T) {
	cases := map[string]struct {
		body  string
		field string
		tag   string
	}{
		"no customer": {`{"items":[{"title":"Chair","quantity":1}]}`, "CustomerID", "required"},
		"no items":    {`{"customer_id":"C1","items":[]}`, "Items", "min"},
		"no title":    {`{"customer_id":"C1","items":[{"quantity":1}]}`, "Title", "required"},
		"negative":    {`{"customer_id":"C1","items":[{"title":"Chair","quantity":-1}]}`, "Quantity", "gte"},
	}
	for name, c := range cases {
		l := &fakeLedger{}
		srv := newServer(t, l, &fakeAssets{})

		resp := do(t, srv, http.MethodPost, "/v1/quotations", "application/json", []byte(c.body))

		require.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		fields := decode(t, resp)["fields"].(map[string]interface{})
		assert.Equal(t, c.tag, fields[c.field], name)
		assert.Empty(t, l.created.Items, name)
	}
}

func TestEditQuotationValidatesBody(t *testing.T) {
	l := &fakeLedger{}
	srv := newServer(t, l, &fakeAssets{})

	resp := do(t, srv, http.MethodPut, "/v1/quotations/SN-0001", "application/json", []byte(`{"items":[]}`))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, l.editSerial)
}

func TestEditQuotationPartialFailure(t *testing.T) {
	l := &fakeLedger{
		edit: &ledger.EditResult{
			Serial:  "SN-0001",
			Updated: []int{2},
			Failed:  []ledger.ItemFailure{{Item: 1, Row: 7, Err: errors.Wrap(quote.ErrStaleIndex, "row 7")}},
		},
	}
	l.editErr = l.edit.Failed[0]
	srv := newServer(t, l, &fakeAssets{})

	resp := do(t, srv, http.MethodPut, "/v1/quotations/SN-0001", "application/json", []byte(`{"items":[{"row":7,"title":"Chair","quantity":1}]}`))

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "SN-0001", l.editSerial)
	out := decode(t, resp)
	result := out["result"].(map[string]interface{})
	failed := result["failed"].([]interface{})
	require.Len(t, failed, 1)
	assert.EqualValues(t, 7, failed[0].(map[string]interface{})["row"])
	assert.Equal(t, []interface{}{float64(2)}, result["updated"])
}

func TestPublishDocumentUsesCatalog(t *testing.T) {
	l := &fakeLedger{}
	srv := newServer(t, l, &fakeAssets{})

	resp := do(t, srv, http.MethodPost, "/v1/quotations/SN-0001/document", "", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Quote Desk", l.catalog.CompanyName)
	assert.Equal(t, "https://drive.google.com/file/d/DOC/view", decode(t, resp)["document_link"])
}

func TestSetStatus(t *testing.T) {
	l := &fakeLedger{}
	srv := newServer(t, l, &fakeAssets{})

	resp := do(t, srv, http.MethodPut, "/v1/quotations/SN-0001/status", "application/json", []byte(`{"status":"approved"}`))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, quote.StatusApproved, l.status)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	l := &fakeLedger{}
	srv := newServer(t, l, &fakeAssets{})

	resp := do(t, srv, http.MethodPut, "/v1/quotations/SN-0001/status", "application/json", []byte(`{"status":"archived"}`))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields := decode(t, resp)["fields"].(map[string]interface{})
	assert.Equal(t, "oneof", fields["Status"])
	assert.Empty(t, l.status)
}

func multipartBody(t *testing.T, fileName, contentType string, data []byte) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), buf.Bytes()
}

func TestUploadAsset(t *testing.T) {
	a := &fakeAssets{}
	srv := newServer(t, &fakeLedger{}, a)
	ct, body := multipartBody(t, "photo.png", "", []byte("\x89PNG\r\n\x1a\nrest"))

	resp := do(t, srv, http.MethodPost, "/v1/assets", ct, body)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode(t, resp)
	assert.Equal(t, "https://drive.google.com/thumbnail?id=NEW&sz=w400", out["url"])
	assert.Equal(t, asset.KindInline, a.got.Kind)
	assert.Equal(t, "image/png", a.got.MimeType)
	assert.True(t, strings.HasPrefix(string(a.got.Data), "\x89PNG"))
}

func TestUploadAssetRejectsNonImages(t *testing.T) {
	srv := newServer(t, &fakeLedger{}, &fakeAssets{})
	ct, body := multipartBody(t, "notes.txt", "text/plain", []byte("hello"))

	resp := do(t, srv, http.MethodPost, "/v1/assets", ct, body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadAssetStoreFailure(t *testing.T) {
	srv := newServer(t, &fakeLedger{}, &fakeAssets{err: &asset.UploadError{FileName: "f", Reason: "no url"}})
	ct, body := multipartBody(t, "photo.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff})

	resp := do(t, srv, http.MethodPost, "/v1/assets", ct, body)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
