//go:build integration

package integration

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"
)

// TestInvoiceFlow runs a batch over the seeded orders and checks that only
// the valid cash-on-delivery order is invoiced, exactly once.
func TestInvoiceFlow(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/process_orders")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("process_orders: expected 200, got %d: %s", resp.StatusCode, body)
	}

	report := decodeJSON[reportResponse](t, resp)
	if report.TotalOrders != seededOrders {
		t.Errorf("total_orders: got %d, want %d", report.TotalOrders, seededOrders)
	}
	if report.ConfirmedOrders != 1 {
		t.Errorf("confirmed_orders: got %d, want 1", report.ConfirmedOrders)
	}
	if len(report.Invoices) != 1 || report.Invoices[0].OrderID != "ORD-1001" {
		t.Fatalf("invoices: got %+v, want only ORD-1001", report.Invoices)
	}
	if want := "http://localhost:8080/files/Invoice_ORD-1001.pdf"; report.Invoices[0].InvoiceURL != want {
		t.Errorf("invoice_url: got %q, want %q", report.Invoices[0].InvoiceURL, want)
	}
	if len(report.FailedOrders) != 0 {
		t.Errorf("failed_orders: got %+v, want none", report.FailedOrders)
	}

	reasons := make(map[string]string, len(report.SkippedOrders))
	for _, s := range report.SkippedOrders {
		reasons[s.OrderID] = s.Reason
	}
	wantReasons := map[string]string{
		"ORD-1002": "payment verification failed",
		"ORD-1003": "invalid phone",
		"ORD-1004": "suspicious quantity",
	}
	for id, want := range wantReasons {
		if got := reasons[id]; got != want {
			t.Errorf("skip reason for %s: got %q, want %q", id, got, want)
		}
	}

	t.Run("download", func(t *testing.T) {
		resp := doGet(t, "/api/download_invoice/ORD-1001")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("Content-Type: got %q", ct)
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "Invoice_ORD-1001.pdf") {
			t.Errorf("Content-Disposition: got %q", cd)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !bytes.HasPrefix(body, []byte("%PDF-")) {
			t.Errorf("body is not a PDF document")
		}
	})

	t.Run("orders marked", func(t *testing.T) {
		resp := doGet(t, "/api/orders")
		defer resp.Body.Close()

		for _, o := range decodeJSON[[]orderResponse](t, resp) {
			want := o.OrderID == "ORD-1001"
			if o.InvoiceGenerated != want {
				t.Errorf("%s: invoice_generated=%v, want %v", o.OrderID, o.InvoiceGenerated, want)
			}
		}
	})

	t.Run("second batch skips invoiced orders", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/process_orders")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		report := decodeJSON[reportResponse](t, resp)
		if report.TotalOrders != seededOrders-1 {
			t.Errorf("total_orders: got %d, want %d", report.TotalOrders, seededOrders-1)
		}
		if len(report.Invoices) != 0 {
			t.Errorf("invoices: got %+v, want none", report.Invoices)
		}
	})
}

func TestDownloadInvoice_NotFound(t *testing.T) {
	resp := doGet(t, "/api/download_invoice/ORD-1003")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusNotFound {
		t.Errorf("code: got %d, want 404", body.Code)
	}
}

func TestDownloadInvoice_InvalidID(t *testing.T) {
	resp := doGet(t, "/api/download_invoice/bad%20id")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
