package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quotedesk/go_backend/internal/domain/ledger"
	"quotedesk/go_backend/internal/domain/quote"
)

const maxBodySize = 20 << 20

type failedItem struct {
	Item  int    `json:"item"`
	Row   int    `json:"row,omitempty"`
	Error string `json:"error"`
}

type editResponse struct {
	*ledger.EditResult
	Failed []failedItem `json:"failed,omitempty"`
}

func (h *Handlers) ListQuotations(w http.ResponseWriter, r *http.Request) {
	qs, err := h.Ledger.ListQuotations(r.Context())
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if qs == nil {
		qs = []quote.Quotation{}
	}
	h.writeJSON(w, http.StatusOK, qs)
}

func (h *Handlers) GetQuotation(w http.ResponseWriter, r *http.Request) {
	q, err := h.Ledger.GetQuotation(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) CreateQuotation(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateInput
	if !h.decodeValid(w, r, maxBodySize, &req) {
		return
	}

	res, err := h.Ledger.CreateQuotation(r.Context(), req)
	if err != nil {
		var partial interface{}
		if res != nil {
			partial = res
		}
		h.writeError(w, r, err, partial)
		return
	}
	h.writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) EditQuotation(w http.ResponseWriter, r *http.Request) {
	var req ledger.EditInput
	if !h.decodeValid(w, r, maxBodySize, &req) {
		return
	}

	res, err := h.Ledger.EditQuotation(r.Context(), chi.URLParam(r, "serial"), req)
	var body interface{}
	if res != nil {
		out := editResponse{EditResult: res}
		for _, f := range res.Failed {
			out.Failed = append(out.Failed, failedItem{Item: f.Item, Row: f.Row, Error: f.Err.Error()})
		}
		body = out
	}
	if err != nil {
		h.writeError(w, r, err, body)
		return
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) PublishDocument(w http.ResponseWriter, r *http.Request) {
	res, err := h.Ledger.PublishDocument(r.Context(), chi.URLParam(r, "serial"), h.Catalog)
	if err != nil {
		var partial interface{}
		if res != nil {
			partial = res
		}
		h.writeError(w, r, err, partial)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status quote.Status `json:"status" validate:"required,oneof=draft sent approved rejected"`
	}
	if !h.decodeValid(w, r, 1<<10, &req) {
		return
	}
	serialNo := chi.URLParam(r, "serial")
	if err := h.Ledger.SetStatus(r.Context(), serialNo, req.Status); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"serial": serialNo,
		"status": req.Status,
	})
}

func (h *Handlers) ListCustomers(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Ledger.Customers(r.Context())
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if cs == nil {
		cs = []quote.Customer{}
	}
	h.writeJSON(w, http.StatusOK, cs)
}
