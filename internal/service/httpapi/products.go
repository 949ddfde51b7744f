package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/pos/internal/export"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
)

// listProducts handles GET /api/v1/products?q=
func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		writeData(w, http.StatusOK, h.Catalog.Search(q))
		return
	}
	writeData(w, http.StatusOK, h.Catalog.List())
}

// getProduct handles GET /api/v1/products/{id}
func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

// createProduct handles POST /api/v1/products
func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := h.Catalog.AddProduct(r.Context(), in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	status := http.StatusCreated
	if res.Queued {
		status = http.StatusAccepted
	}
	writeData(w, status, res)
}

// updateProduct handles PUT /api/v1/products/{id}
func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "id")
	res, err := h.Catalog.UpdateProduct(r.Context(), in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// deleteProduct handles DELETE /api/v1/products/{id}
func (h *handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	res, err := h.Catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// syncProducts handles POST /api/v1/products/sync
func (h *handler) syncProducts(w http.ResponseWriter, r *http.Request) {
	n, err := h.Catalog.Sync(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"products": n})
}

// exportProducts handles GET /api/v1/exports/products?format=txt|json|xlsx
func (h *handler) exportProducts(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	body, err := export.Products(format, h.Catalog.List())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeAttachment(w, format, export.ProductsFilename(format, h.Now()), body)
}

func writeAttachment(w http.ResponseWriter, format export.Format, filename string, body []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
