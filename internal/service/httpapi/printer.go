package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/pos/internal/printer"
)

type printerStatusView struct {
	Status printer.Status `json:"status"`
	Busy   bool           `json:"busy"`
}

// printerStatus handles GET /api/v1/printer/status
func (h *handler) printerStatus(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, printerStatusView{Status: h.Printing.Status(), Busy: h.Printing.Busy()})
}

// connectPrinter handles POST /api/v1/printer/connect
func (h *handler) connectPrinter(w http.ResponseWriter, r *http.Request) {
	status, err := h.Printing.Connect(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, printerStatusView{Status: status, Busy: h.Printing.Busy()})
}

// disconnectPrinter handles POST /api/v1/printer/disconnect
func (h *handler) disconnectPrinter(w http.ResponseWriter, _ *http.Request) {
	status, err := h.Printing.Disconnect()
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, printerStatusView{Status: status, Busy: h.Printing.Busy()})
}

// testPrint handles POST /api/v1/printer/test
func (h *handler) testPrint(w http.ResponseWriter, r *http.Request) {
	res, err := h.Printing.TestPrint(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, res)
}
