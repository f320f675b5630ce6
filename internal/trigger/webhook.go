// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// WebhookPrefix is the public route prefix webhook triggers are served under.
	WebhookPrefix = "/hooks"

	SignatureHeader = "X-Signature"
)

// CanonicalWebhookPath normalizes a configured or requested path so that
// "/hooks/orders", "orders" and "/orders/" all reserve the same route.
func CanonicalWebhookPath(path string) string {
	p := strings.TrimSpace(path)
	if p == WebhookPrefix || strings.HasPrefix(p, WebhookPrefix+"/") {
		p = strings.TrimPrefix(p, WebhookPrefix)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// SignPayload returns the hex HMAC-SHA256 of body, or "" without a secret.
func SignPayload(secret string, body []byte) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a request body against the trigger's secret. A
// webhook without a secret accepts every request.
func (t Webhook) VerifySignature(body []byte, signature string) bool {
	want := SignPayload(t.Secret, body)
	if want == "" {
		return true
	}
	got := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	return hmac.Equal([]byte(want), []byte(strings.ToLower(got)))
}
