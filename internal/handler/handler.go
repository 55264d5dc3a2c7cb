// Package handler implements the HTTP API: batch triggering, order listing
// and invoice download.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/invoicer/internal/domain/invoice"
	"github.com/xenking/invoicer/internal/domain/order"
	"github.com/xenking/invoicer/internal/domain/pipeline"
)

// BatchRunner runs one invoicing batch.
type BatchRunner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// Handler serves the /api routes.
type Handler struct {
	batches BatchRunner
	orders  order.Repository
	store   invoice.ObjectStore
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(batches BatchRunner, orders order.Repository, store invoice.ObjectStore) *Handler {
	return &Handler{batches: batches, orders: orders, store: store}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/process_orders", h.ProcessOrders)
	mux.HandleFunc("POST /api/process_orders", h.ProcessOrders)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/download_invoice/{orderId}", h.DownloadInvoice)
}

// ProcessOrders runs one batch and responds with its report. A client that
// disconnects does not cancel the batch.
func (h *Handler) ProcessOrders(w http.ResponseWriter, r *http.Request) {
	report, err := h.batches.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrBatchInProgress):
			writeError(w, http.StatusConflict, "a batch is already in progress")
		default:
			h.internalError(w, r, err)
		}
		return
	}

	var e jx.Encoder
	report.Encode(&e)
	writeJSON(w, http.StatusOK, e.Bytes())
}

// internalError maps unexpected errors to 503 when a backend is down and
// 500 otherwise.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())
	if errors.Is(err, invoice.ErrBackendUnavailable) {
		lg.Warn("Backend unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "backend unavailable")
		return
	}
	lg.Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError responds with {"code":...,"message":...}.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}

// copyBody streams an object to the client. Once streaming has started the
// status can no longer change, so copy errors are only logged.
func copyBody(w http.ResponseWriter, r *http.Request, body io.Reader) {
	if _, err := io.Copy(w, body); err != nil {
		zctx.From(r.Context()).Warn("Stream interrupted", zap.Error(err))
	}
}
