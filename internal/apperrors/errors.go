package apperrors

import "errors"

// Transient errors. These indicate a cycle that should be skipped, not a
// broken process.
var (
	// ErrPriceUnavailable indicates the price oracle could not supply a price
	// for the primary asset. The sampler skips the cycle rather than writing
	// a snapshot with a phantom drop to zero.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrBalancesUnavailable indicates the balance source returned no usable
	// account state for this cycle.
	ErrBalancesUnavailable = errors.New("balances unavailable")
)

// Baseline and calculation errors. An invalid PnL baseline is not an error;
// PnLResult carries a Valid flag so consumers keep functioning.
var (
	// ErrNoSnapshot indicates no snapshot exists yet for the requested query.
	ErrNoSnapshot = errors.New("no snapshot available")

	// ErrNoPeak indicates the peak history is empty.
	ErrNoPeak = errors.New("no peak recorded")
)

// Ledger errors.
var (
	// ErrDuplicateFlow indicates a capital flow with the same external
	// reference was already recorded. Callers normally treat this as the
	// DuplicateIgnored result, not a failure.
	ErrDuplicateFlow = errors.New("duplicate capital flow")

	// ErrUnknownCounterparty indicates a transfer event whose external side
	// could not be resolved; such events are never recorded as flows.
	ErrUnknownCounterparty = errors.New("unknown transfer counterparty")

	// ErrFlowRejected indicates a transfer event that does not describe a
	// capital flow into or out of the tracked account.
	ErrFlowRejected = errors.New("transfer event rejected")
)

// Store errors.
var (
	// ErrStoreUnavailable indicates the local durable store could not be
	// written. Local durability is required, so this is fatal for the cycle
	// and retried with backoff.
	ErrStoreUnavailable = errors.New("local store unavailable")

	// ErrRemoteStoreUnavailable indicates the best-effort remote store could
	// not be reached. Logged as a warning, never escalated.
	ErrRemoteStoreUnavailable = errors.New("remote store unavailable")
)

// Validation errors for the administrative surface.
var (
	ErrInvalidPeakValue   = errors.New("peak value must be positive")
	ErrInvalidFlowAmount  = errors.New("flow amount must be positive")
	ErrInvalidFlowType    = errors.New("flow type must be deposit or withdrawal")
	ErrMissingReference   = errors.New("external reference is required")
	ErrInvalidDateRange   = errors.New("invalid date range")
	ErrSamplerBusy        = errors.New("a sample is already in progress")
	ErrDispatcherSaturate = errors.New("dispatch queue is full")
)
