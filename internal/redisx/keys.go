package redisx

import "time"

const (
	// Session cart hash: cart:{session_id} -> field product_id, value line JSON
	KeyCart = "cart:%s"

	// Browser session hash: session:{session_id} -> {"user_id": "..."}
	KeySession = "session:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCart    = 7 * 24 * time.Hour
	TTLSession = 30 * 24 * time.Hour
	TTLDedup   = 48 * time.Hour
)
