package model

import "time"

// EventKind names a lease lifecycle transition as recorded in the durable
// journal and published to the message broker.
type EventKind string

const (
	EventListed     EventKind = "LISTED"
	EventDelisted   EventKind = "DELISTED"
	EventLeased     EventKind = "LEASED"
	EventRepayed    EventKind = "REPAYED"
	EventLiquidated EventKind = "LIQUIDATED"
)

// LeaseEvent carries the full pre/post-relevant fields of a transition so
// off-engine indexers can reconstruct history without re-querying the
// marketplace.
type LeaseEvent struct {
	Kind       EventKind     `json:"kind"`
	ListingID  uint64        `json:"listing_id"`
	Lessor     Account       `json:"lessor"`
	Lessee     Account       `json:"lessee,omitempty"`
	Collection string        `json:"collection"`
	TokenID    uint64        `json:"token_id"`
	Collateral uint64        `json:"collateral"`
	Rent       uint64        `json:"rent"`
	Term       time.Duration `json:"term_seconds"`
	LeaseStart time.Time     `json:"lease_start,omitempty"`
	LeaseEnd   time.Time     `json:"lease_end,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewLeaseEvent builds an event snapshot from a listing record.
func NewLeaseEvent(kind EventKind, item ListingItem, at time.Time) LeaseEvent {
	return LeaseEvent{
		Kind:       kind,
		ListingID:  item.ID,
		Lessor:     item.Lessor,
		Lessee:     item.Lessee,
		Collection: item.Collection,
		TokenID:    item.TokenID,
		Collateral: item.Collateral,
		Rent:       item.Rent,
		Term:       item.Term,
		LeaseStart: item.LeaseStart,
		LeaseEnd:   item.LeaseEnd,
		OccurredAt: at.UTC(),
	}
}
