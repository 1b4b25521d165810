// Package signer issues stateless, time-boxed guest access tokens for
// orders. Receipt and tracking links live in distinct salt namespaces so one
// can never be presented as the other.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	saltReceipt  = "order.guest_access"
	saltTracking = "order.guest_track"

	receiptMaxAge  = 24 * time.Hour
	trackingMaxAge = 30 * 24 * time.Hour // fulfillment spans longer than payment confirmation
)

type Signer struct {
	key    []byte // salt-derived, never the raw secret
	maxAge time.Duration
}

func New(secret, salt string, maxAge time.Duration) *Signer {
	// Derive a per-namespace key so tokens from one salt fail MAC
	// verification under any other.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(salt))
	return &Signer{key: mac.Sum(nil), maxAge: maxAge}
}

// NewReceipt signs guest receipt links, valid for 24 hours.
func NewReceipt(secret string) *Signer {
	return New(secret, saltReceipt, receiptMaxAge)
}

// NewTracking signs guest tracking links, valid for 30 days.
func NewTracking(secret string) *Signer {
	return New(secret, saltTracking, trackingMaxAge)
}

// Sign produces an opaque token embedding the order id and issue time.
func (s *Signer) Sign(orderID int64) string {
	return s.signAt(orderID, time.Now())
}

func (s *Signer) signAt(orderID int64, issued time.Time) string {
	payload := fmt.Sprintf("%d:%d", orderID, issued.Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.signature(payload)
}

// Verify returns the embedded order id. It fails closed: a malformed token,
// bad signature, expired timestamp or non-integer payload all yield ok=false.
func (s *Signer) Verify(token string) (int64, bool) {
	return s.verifyAt(token, time.Now())
}

func (s *Signer) verifyAt(token string, now time.Time) (int64, bool) {
	encoded, sig, found := strings.Cut(token, ".")
	if !found {
		return 0, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return 0, false
	}
	payload := string(raw)

	if !hmac.Equal([]byte(sig), []byte(s.signature(payload))) {
		return 0, false
	}

	idPart, tsPart, found := strings.Cut(payload, ":")
	if !found {
		return 0, false
	}
	orderID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, false
	}
	issuedUnix, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, false
	}

	if now.Sub(time.Unix(issuedUnix, 0)) > s.maxAge {
		return 0, false
	}
	return orderID, true
}

func (s *Signer) signature(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
