package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"course-commerce/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	ps := &PaymentService{webhookSecret: "topsecret", logger: zap.NewNop()}
	body := []byte(`{"order_id":42,"status":"PAID"}`)

	assert.NoError(t, ps.VerifySignature(body, signBody("topsecret", body)))
}

func TestVerifySignatureRejectsBadSignature(t *testing.T) {
	ps := &PaymentService{webhookSecret: "topsecret", logger: zap.NewNop()}
	body := []byte(`{"order_id":42,"status":"PAID"}`)

	err := ps.VerifySignature(body, signBody("wrong-secret", body))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	ps := &PaymentService{webhookSecret: "topsecret", logger: zap.NewNop()}
	body := []byte(`{"order_id":42,"status":"PAID"}`)
	sig := signBody("topsecret", body)

	tampered := []byte(`{"order_id":43,"status":"PAID"}`)
	assert.ErrorIs(t, ps.VerifySignature(tampered, sig), ErrInvalidSignature)
}

func TestVerifySignatureToleratesCase(t *testing.T) {
	ps := &PaymentService{webhookSecret: "topsecret", logger: zap.NewNop()}
	body := []byte(`payload`)

	upper := " " + strings.ToUpper(signBody("topsecret", body)) + " "
	assert.NoError(t, ps.VerifySignature(body, upper))
}

func TestVerifySignatureSkippedWithoutSecret(t *testing.T) {
	ps := &PaymentService{webhookSecret: "", logger: zap.NewNop()}

	assert.NoError(t, ps.VerifySignature([]byte("anything"), "garbage"))
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"PAID", models.PaymentStatusCompleted, true},
		{"paid", models.PaymentStatusCompleted, true},
		{"Captured", models.PaymentStatusCompleted, true},
		{"SUCCESS", models.PaymentStatusCompleted, true},
		{"FAILED", models.PaymentStatusFailed, true},
		{"declined", models.PaymentStatusFailed, true},
		{"CANCELLED", models.PaymentStatusCancelled, true},
		{"VOIDED", models.PaymentStatusCancelled, true},
		{"REFUNDED", models.PaymentStatusRefunded, true},
		{"processing", models.PaymentStatusProcessing, true},
		{"PENDING", models.PaymentStatusPending, true},
		{"INITIATED", models.PaymentStatusPending, true},
		{"SOMETHING_ELSE", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := mapProviderStatus(tt.in)
		assert.Equal(t, tt.ok, ok, "status %q", tt.in)
		assert.Equal(t, tt.want, got, "status %q", tt.in)
	}
}
