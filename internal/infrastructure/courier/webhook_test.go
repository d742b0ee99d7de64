package courier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("webhook-secret")
	body := []byte(`{"waybill":"AWB1","status":"PICKED_UP"}`)
	valid := Sign(secret, body)

	tests := []struct {
		name      string
		secret    []byte
		body      []byte
		signature string
		wantErr   bool
	}{
		{"valid", secret, body, valid, false},
		{"valid with prefix", secret, body, "sha256=" + valid, false},
		{"tampered body", secret, []byte(`{"waybill":"AWB1","status":"DELIVERED"}`), valid, true},
		{"wrong secret", []byte("other"), body, valid, true},
		{"not hex", secret, body, "zzzz", true},
		{"empty signature", secret, body, "", true},
		{"no secret configured", nil, body, valid, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.secret, tt.body, tt.signature)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
