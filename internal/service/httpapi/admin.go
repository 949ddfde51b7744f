package httpapi

import (
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// shopView — реквизиты магазина без хеша пароля.
type shopView struct {
	Name            string `json:"name"`
	Address         string `json:"address"`
	Phone           string `json:"phone"`
	InvoiceNo       int    `json:"invoiceNo"`
	RemoteCatalogID string `json:"remoteCatalogId,omitempty"`
}

func newShopView(s domain.ShopProfile) shopView {
	return shopView{
		Name:            s.Name,
		Address:         s.Address,
		Phone:           s.Phone,
		InvoiceNo:       s.InvoiceNo,
		RemoteCatalogID: s.RemoteCatalogID,
	}
}

// login handles POST /api/v1/admin/login
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Admin.VerifyPassword(req.Password); err != nil {
		h.Logger.WithField("remote_addr", r.RemoteAddr).Warn("admin login rejected")
		writeError(w, h.Logger, err)
		return
	}
	token, expires, err := h.JWT.Issue()
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

// getShop handles GET /api/v1/admin/shop
func (h *handler) getShop(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, newShopView(h.Admin.Shop()))
}

// updateShop handles PUT /api/v1/admin/shop
func (h *handler) updateShop(w http.ResponseWriter, r *http.Request) {
	var upd domain.ShopUpdate
	if !decodeBody(w, r, &upd) {
		return
	}
	shop, err := h.Admin.UpdateShop(r.Context(), upd)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, newShopView(shop))
}

// clearData handles POST /api/v1/admin/clear
func (h *handler) clearData(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.ClearLocalData(r.Context()); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.Logger.Warn("local data cleared")
	writeData(w, http.StatusOK, newShopView(h.Admin.Shop()))
}

// listPending handles GET /api/v1/admin/pending
func (h *handler) listPending(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.Admin.PendingSync())
}

// flushPending handles POST /api/v1/admin/pending/flush
func (h *handler) flushPending(w http.ResponseWriter, r *http.Request) {
	if h.Syncer == nil {
		writeError(w, h.Logger, domain.ErrRemoteNotConfigured)
		return
	}
	report, err := h.Syncer.Flush(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, report)
}
