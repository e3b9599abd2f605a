package mercadopago

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wekeepgrowing/order-payments/internal/infrastructure/crypto"
)

const (
	SignatureHeader = "X-Signature"
	RequestIDHeader = "X-Request-Id"
)

var errMalformedSignature = errors.New("x-signature must carry ts and v1")

// manifest is the string the notification signature covers:
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;". Parts whose value is
// absent are left out. Alphanumeric ids are signed lowercased.
func manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	if ts != "" {
		b.WriteString("ts:" + ts + ";")
	}
	return b.String()
}

func verifySignature(secret, dataID string, headers http.Header) error {
	parts := crypto.ParseKeyValueHeader(headers.Get(SignatureHeader))
	ts, v1 := parts["ts"], parts["v1"]
	if ts == "" || v1 == "" {
		return errMalformedSignature
	}
	return crypto.VerifyHex(secret, []byte(manifest(dataID, headers.Get(RequestIDHeader), ts)), v1)
}

// Sign builds an x-signature header value. Used by tests and local tools
// that replay notifications.
func Sign(secret, dataID, requestID, ts string) string {
	return "ts=" + ts + ",v1=" + crypto.SignHex(secret, []byte(manifest(dataID, requestID, ts)))
}
