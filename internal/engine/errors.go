package engine

import "errors"

// Sentinel errors for every lifecycle precondition violation. Handlers map
// them to HTTP statuses with errors.Is; the registry's DuplicateListing and
// CapacityExceeded sentinels live in the repository package and pass through
// the engine unchanged. Every failure aborts the call with no state
// mutation, except ErrApprovalRevoked whose implicit delist is part of the
// contract.
var (
	ErrNotOwner               = errors.New("caller does not own the asset")
	ErrNotApproved            = errors.New("market lacks transfer approval from caller")
	ErrInvalidCollateral      = errors.New("collateral value must be positive")
	ErrInvalidRental          = errors.New("rental value must be positive")
	ErrTermOutOfRange         = errors.New("lease term out of range")
	ErrNotLessor              = errors.New("caller is not the lessor")
	ErrNotActive              = errors.New("listing is not active")
	ErrSelfLease              = errors.New("lessor cannot lease own listing")
	ErrApprovalRevoked        = errors.New("lessor transfer approval revoked; listing delisted")
	ErrPaymentMismatch        = errors.New("paid value must equal collateral plus rent")
	ErrNotLeased              = errors.New("listing is not leased")
	ErrRepayNotAuthorized     = errors.New("repayer lacks transfer approval for the asset")
	ErrLeaseNotExpired        = errors.New("lease term has not expired")
	ErrLiquidateNotAuthorized = errors.New("caller may not liquidate this lease")
	ErrTransferFailed         = errors.New("asset transfer failed")
	ErrPaymentFailed          = errors.New("payment failed")
)
