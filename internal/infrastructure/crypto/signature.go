package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrEmptySecret      = errors.New("signing secret is empty")
	ErrMissingSignature = errors.New("signature is missing")
	ErrSignatureFormat  = errors.New("signature is not valid hex")
	ErrSignatureInvalid = errors.New("signature does not match")
)

// SignHex returns the lowercase hex HMAC-SHA256 of message.
func SignHex(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHex checks a hex HMAC-SHA256 signature in constant time. A
// "sha256=" prefix on the signature is accepted.
func VerifyHex(secret string, message []byte, signature string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return ErrMissingSignature
	}

	given, err := hex.DecodeString(signature)
	if err != nil {
		return ErrSignatureFormat
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	if !hmac.Equal(mac.Sum(nil), given) {
		return ErrSignatureInvalid
	}
	return nil
}

// ParseKeyValueHeader splits headers shaped like "ts=123,v1=abc" into a map.
// Keys are lowercased; values keep their case.
func ParseKeyValueHeader(header string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return out
}
