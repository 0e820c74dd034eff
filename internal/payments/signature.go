package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// checkoutSignature signs the five fields PayOS requires on a payment request, in
// alphabetical order.
func checkoutSignature(key string, p CheckoutParams) string {
	payload := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		p.Amount, p.CancelURL, p.Description, p.OrderCode, p.ReturnURL)
	return hmacHex(key, payload)
}

// SignWebhookData computes the signature PayOS attaches to webhook data: every field
// sorted by key, joined as k=v with '&'. Null values sign as the empty string.
func SignWebhookData(key string, data json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return "", fmt.Errorf("payments: decode webhook data: %w", err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+signatureValue(fields[k]))
	}
	return hmacHex(key, strings.Join(parts, "&")), nil
}

func signatureValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if val == "null" || val == "undefined" {
			return ""
		}
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// VerifyWebhookSignature checks signature against data. An empty key disables verification
// for local development.
func VerifyWebhookSignature(key string, data json.RawMessage, signature string) error {
	if key == "" {
		return nil
	}
	if signature == "" {
		return ErrInvalidSignature
	}
	expected, err := SignWebhookData(key, data)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

func hmacHex(key, payload string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

var orderCodeSpan = big.NewInt(900000)

// randomOrderCode returns a six-digit order code.
func randomOrderCode() (int64, error) {
	n, err := rand.Int(rand.Reader, orderCodeSpan)
	if err != nil {
		return 0, err
	}
	return n.Int64() + 100000, nil
}
