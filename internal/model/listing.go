package model

import "time"

// Account identifies a participant on the native payment rail and in the
// asset registry. Addresses are opaque strings; the marketplace never
// derives meaning from them beyond equality.
type Account string

// Zero reports whether the account is unset.
func (a Account) Zero() bool { return a == "" }

// Status is the lifecycle state of a listing. A listing starts ACTIVE,
// may move to LEASED, and always ends DELISTED. DELISTED is terminal:
// records are never mutated again and never removed.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusLeased   Status = "LEASED"
	StatusDelisted Status = "DELISTED"
)

// ListingItem is the sole persistent entity of the marketplace.
//
// Fields:
//
//	ID         – dense identifier assigned in creation order, starting at 0.
//	Status     – ACTIVE, LEASED or DELISTED.
//	Lessor     – account that created the listing; immutable.
//	Lessee     – account currently renting; empty until leased.
//	Collection – asset collection identifier; immutable.
//	TokenID    – asset token number within the collection; immutable.
//	Collateral – escrowed by the lessee, refunded on repay, forfeited on liquidation.
//	Rent       – paid by the lessee for the term, split between lessor and platform.
//	Term       – lease duration agreed at listing time.
//	LeaseStart – zero until leased; set once at lease-in.
//	LeaseEnd   – LeaseStart + Term exactly; set once, never recomputed.
type ListingItem struct {
	ID         uint64        `json:"id"`
	Status     Status        `json:"status"`
	Lessor     Account       `json:"lessor"`
	Lessee     Account       `json:"lessee,omitempty"`
	Collection string        `json:"collection"`
	TokenID    uint64        `json:"token_id"`
	Collateral uint64        `json:"collateral"`
	Rent       uint64        `json:"rent"`
	Term       time.Duration `json:"term_seconds"`
	LeaseStart time.Time     `json:"lease_start,omitempty"`
	LeaseEnd   time.Time     `json:"lease_end,omitempty"`
}

// Exists reports whether the item is a real record. Point lookups return a
// zero-value item for unknown ids, so callers check Status instead of an error.
func (l ListingItem) Exists() bool { return l.Status != "" }

// ExpiredAt reports whether the lease term has elapsed strictly before now.
// Only meaningful for LEASED records; liquidation at exactly LeaseEnd is not
// permitted.
func (l ListingItem) ExpiredAt(now time.Time) bool {
	return l.Status == StatusLeased && now.After(l.LeaseEnd)
}
