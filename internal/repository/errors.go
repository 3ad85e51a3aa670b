// Package repository holds the listing registry and the SQL-backed data
// access types, together with the sentinel errors they surface. Higher
// layers compare against these values with errors.Is to pick status codes
// and abort behaviour; none of them are retried internally.
package repository

import "errors"

// ErrDuplicateListing is returned when an asset already has a non-terminal
// listing. The dedup index permits at most one ACTIVE or LEASED listing
// per (collection, tokenId) at any time.
var ErrDuplicateListing = errors.New("asset already listed")

// ErrCapacityExceeded is returned when creating a listing would exceed the
// configured maximum listing count. Identifiers are never recycled, so the
// bound is on ids ever assigned, not on live records.
var ErrCapacityExceeded = errors.New("listing capacity exceeded")

// ErrAccountExists is returned when registering an account whose address
// is already taken.
var ErrAccountExists = errors.New("account already exists")
