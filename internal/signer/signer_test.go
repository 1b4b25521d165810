package signer

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestSignVerifyRoundtrip(t *testing.T) {
	s := NewReceipt(secret)

	token := s.Sign(42)
	id, ok := s.Verify(token)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestVerifyFailsClosed(t *testing.T) {
	s := NewReceipt(secret)
	valid := s.Sign(42)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", "justonepart"},
		{"tampered signature", valid + "x"},
		{"tampered payload", "x" + valid},
		{"garbage base64", "!!!.???"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := s.Verify(tt.token)
			assert.False(t, ok)
		})
	}
}

func TestVerifyRejectsNonIntegerPayload(t *testing.T) {
	s := NewReceipt(secret)

	payload := "abc:123"
	token := base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.signature(payload)
	_, ok := s.Verify(token)
	assert.False(t, ok)
}

func TestVerifyExpires(t *testing.T) {
	s := NewReceipt(secret)
	issued := time.Now().Add(-25 * time.Hour)

	token := s.signAt(7, issued)
	_, ok := s.Verify(token)
	assert.False(t, ok)

	// just inside the window
	token = s.signAt(7, time.Now().Add(-23*time.Hour))
	id, ok := s.Verify(token)
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestTrackingTokensOutliveReceiptTokens(t *testing.T) {
	receipt := NewReceipt(secret)
	track := NewTracking(secret)

	weekOld := time.Now().Add(-7 * 24 * time.Hour)

	_, ok := receipt.verifyAt(receipt.signAt(7, weekOld), time.Now())
	assert.False(t, ok)

	id, ok := track.verifyAt(track.signAt(7, weekOld), time.Now())
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestNamespaceIsolation(t *testing.T) {
	receipt := NewReceipt(secret)
	track := NewTracking(secret)

	rt := receipt.Sign(42)
	tt := track.Sign(42)

	// receipt tokens never verify as tracking tokens, and vice versa
	_, ok := track.Verify(rt)
	assert.False(t, ok)
	_, ok = receipt.Verify(tt)
	assert.False(t, ok)
}
