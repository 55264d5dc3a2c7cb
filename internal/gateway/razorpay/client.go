// Package razorpay implements payment.Gateway over the Razorpay payments API.
package razorpay

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/invoicer/internal/domain/payment"
)

// DefaultBaseURL is the production Razorpay API endpoint.
const DefaultBaseURL = "https://api.razorpay.com"

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

var _ payment.Gateway = (*Client)(nil)

// Config holds the client credentials and endpoint.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client fetches payments from the Razorpay API.
type Client struct {
	http    *http.Client
	baseURL string
	keyID   string
	secret  string
}

// NewClient creates a Client whose transport is instrumented with the given
// providers.
func NewClient(cfg Config, tp trace.TracerProvider, mp metric.MeterProvider) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithMeterProvider(mp),
			),
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		keyID:   cfg.KeyID,
		secret:  cfg.KeySecret,
	}
}

// FetchPayment returns the payment with the given id. It returns
// payment.ErrPaymentNotFound when the gateway does not know the id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	u := c.baseURL + "/v1/payments/" + url.PathEscape(paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.SetBasicAuth(c.keyID, c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errors.Wrapf(payment.ErrPaymentNotFound, "payment %s", paymentID)
	case http.StatusBadRequest:
		// Unknown ids are reported as BAD_REQUEST_ERROR.
		if desc := decodeError(body); strings.Contains(strings.ToLower(desc), "does not exist") {
			return nil, errors.Wrapf(payment.ErrPaymentNotFound, "payment %s", paymentID)
		}
		return nil, &StatusError{Code: resp.StatusCode, Description: decodeError(body)}
	default:
		return nil, &StatusError{Code: resp.StatusCode, Description: decodeError(body)}
	}

	p, err := decodePayment(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode payment")
	}
	return p, nil
}

// StatusError is returned for unexpected gateway responses.
type StatusError struct {
	Code        int
	Description string
}

func (e *StatusError) Error() string {
	if e.Description == "" {
		return "unexpected status: " + http.StatusText(e.Code)
	}
	return "unexpected status: " + http.StatusText(e.Code) + ": " + e.Description
}

func decodePayment(body []byte) (*payment.Payment, error) {
	var p payment.Payment
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var dst *string
		switch string(key) {
		case "id":
			dst = &p.ID
		case "status":
			dst = &p.Status
		case "method":
			dst = &p.Method
		default:
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		*dst = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if p.Status == "" {
		return nil, errors.New("missing status")
	}
	return &p, nil
}

// decodeError extracts error.description from a gateway error body. It
// returns an empty string for bodies it cannot parse.
func decodeError(body []byte) string {
	var desc string
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "description" || d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			desc = v
			return err
		})
	})
	if err != nil {
		return ""
	}
	return desc
}
