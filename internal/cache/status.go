package cache

// Status tells the caller how a request was satisfied: served from the
// store, fetched upstream by this caller, or piggybacked on another
// caller's in-flight fetch. Handlers expose it via the X-Cache header.
type Status string

const (
	StatusHit   Status = "HIT"
	StatusMiss  Status = "MISS"
	StatusDedup Status = "DEDUP"
)
