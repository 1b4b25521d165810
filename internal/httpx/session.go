package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-shop-checkout.git/internal/redisx"
)

const sessionCookie = "sid"

// Sessions is the anonymous browser session: a uuid cookie backed by a Redis
// hash. A session "belongs" to an account when the hash carries a user_id
// (how it gets there — login — is outside this service).
type Sessions struct {
	R *redis.Client
}

// SessionID returns the request's session id, minting a cookie on first
// contact.
func (s *Sessions) SessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(redisx.TTLSession.Seconds()),
	})
	return sid
}

// UserID returns the account bound to the session, or "" for guests.
func (s *Sessions) UserID(ctx context.Context, sessionID string) string {
	v, err := s.R.HGet(ctx, fmt.Sprintf(redisx.KeySession, sessionID), "user_id").Result()
	if err != nil {
		return ""
	}
	return v
}
