package mercadopago

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// client is a thin REST client for the endpoints the gateway uses.
type client struct {
	r *resty.Client
}

func newClient(baseURL, accessToken string, timeout time.Duration) *client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &client{r: r}
}

type preferenceItem struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id,omitempty"`
}

type preferencePayer struct {
	Name           string          `json:"name,omitempty"`
	Email          string          `json:"email,omitempty"`
	Identification *identification `json:"identification,omitempty"`
}

type identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type backURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type preferenceRequest struct {
	Items               []preferenceItem       `json:"items"`
	Payer               *preferencePayer       `json:"payer,omitempty"`
	ExternalReference   string                 `json:"external_reference"`
	NotificationURL     string                 `json:"notification_url,omitempty"`
	BackURLs            *backURLs              `json:"back_urls,omitempty"`
	AutoReturn          string                 `json:"auto_return,omitempty"`
	StatementDescriptor string                 `json:"statement_descriptor,omitempty"`
	Expires             bool                   `json:"expires,omitempty"`
	ExpirationDateTo    string                 `json:"expiration_date_to,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

type preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type payment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
	DateApproved      string  `json:"date_approved,omitempty"`
}

func (p *payment) idString() string {
	return strconv.FormatInt(p.ID, 10)
}

type refund struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// apiError is the error envelope the API returns on 4xx/5xx.
type apiError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("mercadopago: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (c *client) createPreference(ctx context.Context, req *preferenceRequest) (*preference, error) {
	var out preference
	var apiErr apiError
	resp, err := c.r.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/checkout/preferences")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, withStatus(&apiErr, resp.StatusCode())
	}
	return &out, nil
}

func (c *client) getPayment(ctx context.Context, id string) (*payment, error) {
	var out payment
	var apiErr apiError
	resp, err := c.r.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/payments/{id}")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, withStatus(&apiErr, resp.StatusCode())
	}
	return &out, nil
}

// refundPayment issues a full refund when amount is nil. Retries with the
// same key return the refund already created.
func (c *client) refundPayment(ctx context.Context, id, idempotencyKey string, amount *float64) (*refund, error) {
	body := map[string]interface{}{}
	if amount != nil {
		body["amount"] = *amount
	}

	var out refund
	var apiErr apiError
	resp, err := c.r.R().
		SetContext(ctx).
		SetHeader("X-Idempotency-Key", idempotencyKey).
		SetPathParam("id", id).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/payments/{id}/refunds")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, withStatus(&apiErr, resp.StatusCode())
	}
	return &out, nil
}

func withStatus(e *apiError, status int) *apiError {
	if e.StatusCode == 0 {
		e.StatusCode = status
	}
	return e
}
