package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/invoicer/internal/domain/invoice"
)

// maxOrderIDLen bounds the order id accepted in paths.
const maxOrderIDLen = 128

// DownloadInvoice streams the published invoice of an order.
func (h *Handler) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	if !validOrderID(orderID) {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	key := invoice.Key(orderID)
	body, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, invoice.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}
		h.internalError(w, r, err)
		return
	}
	defer func() {
		_ = body.Close()
	}()

	w.Header().Set("Content-Type", invoice.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(key))
	w.WriteHeader(http.StatusOK)
	copyBody(w, r, body)
}

// validOrderID accepts printable ASCII ids that cannot be used to traverse
// the object namespace.
func validOrderID(id string) bool {
	if id == "" || len(id) > maxOrderIDLen || id == "." || id == ".." {
		return false
	}
	for i := range len(id) {
		c := id[i]
		if c <= 0x20 || c > 0x7E || c == '/' || c == '\\' || c == '"' {
			return false
		}
	}
	return true
}
