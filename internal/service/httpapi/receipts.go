package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/export"
)

type saveReceiptRequest struct {
	ServiceFee decimal.Decimal `json:"serviceFee"`
}

// listReceipts handles GET /api/v1/receipts
func (h *handler) listReceipts(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.Checkout.History())
}

// previewReceipt handles GET /api/v1/receipts/preview?fee=
func (h *handler) previewReceipt(w http.ResponseWriter, r *http.Request) {
	fee, err := serviceFee(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	rec, err := h.Checkout.Preview(fee)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

// saveReceipt handles POST /api/v1/receipts
func (h *handler) saveReceipt(w http.ResponseWriter, r *http.Request) {
	var req saveReceiptRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.ServiceFee.IsNegative() {
		writeError(w, h.Logger, fmt.Errorf("%w: service fee must not be negative", domain.ErrValidation))
		return
	}
	rec, err := h.Checkout.Save(r.Context(), req.ServiceFee)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

// getReceipt handles GET /api/v1/receipts/{id}
func (h *handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.receipt(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, rec)
}

// exportReceipt handles GET /api/v1/receipts/{id}/export
func (h *handler) exportReceipt(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.receipt(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.Receipt(&buf, rec, h.Labels); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeAttachment(w, export.FormatXLSX, export.ReceiptFilename(rec), buf.Bytes())
}

// printReceipt handles POST /api/v1/receipts/{id}/print
func (h *handler) printReceipt(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.receipt(w, r)
	if !ok {
		return
	}
	res, err := h.Printing.PrintReceipt(r.Context(), rec)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *handler) receipt(w http.ResponseWriter, r *http.Request) (domain.Receipt, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, h.Logger, fmt.Errorf("%w: invalid receipt id %q", domain.ErrValidation, raw))
		return domain.Receipt{}, false
	}
	rec, err := h.Checkout.Receipt(id)
	if err != nil {
		writeError(w, h.Logger, err)
		return domain.Receipt{}, false
	}
	return rec, true
}
