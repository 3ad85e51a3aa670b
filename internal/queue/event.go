// Package queue defines message payloads exchanged over the message broker.
package queue

// LeaseTransitionEvent is published after every committed lifecycle
// transition. It mirrors the journal row so downstream consumers can log,
// notify or index without querying the marketplace.
type LeaseTransitionEvent struct {
	Kind        string `json:"kind"` // LISTED, DELISTED, LEASED, REPAYED, LIQUIDATED
	ListingID   uint64 `json:"listing_id"`
	Lessor      string `json:"lessor"`
	Lessee      string `json:"lessee,omitempty"`
	Collection  string `json:"collection"`
	TokenID     uint64 `json:"token_id"`
	Collateral  uint64 `json:"collateral"`
	Rent        uint64 `json:"rent"`
	TermSeconds int64  `json:"term_seconds"`
	LeaseStart  string `json:"lease_start,omitempty"`
	LeaseEnd    string `json:"lease_end,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}
