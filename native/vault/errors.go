package vault

import "errors"

var (
	ErrNilState             = errors.New("vault engine: state not configured")
	ErrNilAsset             = errors.New("vault engine: asset not configured")
	ErrNotInitialised       = errors.New("vault engine: vault not initialised")
	ErrAlreadyInitialised   = errors.New("vault engine: vault already initialised")
	ErrUnauthorized         = errors.New("vault engine: caller not authorised")
	ErrReentrantCall        = errors.New("vault engine: reentrant call")
	ErrPaused               = errors.New("vault engine: vault paused")
	ErrEmergencyShutdown    = errors.New("vault engine: emergency shutdown active")
	ErrBlockLocked          = errors.New("vault engine: caller already acted this block")
	ErrInvalidAmount        = errors.New("vault engine: amount must be positive")
	ErrInvalidRecipient     = errors.New("vault engine: invalid recipient")
	ErrDepositLimit         = errors.New("vault engine: deposit limit exceeded")
	ErrZeroShares           = errors.New("vault engine: amount converts to zero shares")
	ErrInsufficientShares   = errors.New("vault engine: insufficient share balance")
	ErrInsufficientAllow    = errors.New("vault engine: insufficient allowance")
	ErrInsufficientBalance  = errors.New("vault engine: strategy balance below gain plus debt payment")
	ErrMaxLossExceeded      = errors.New("vault engine: withdrawal loss exceeds tolerance")
	ErrInvalidMaxLoss       = errors.New("vault engine: max loss must not exceed 10000 bps")
	ErrTransferFailed       = errors.New("vault engine: asset transfer failed")
	ErrStrategyNotFound     = errors.New("vault engine: strategy not registered")
	ErrStrategyExists       = errors.New("vault engine: strategy already registered")
	ErrStrategyInactive     = errors.New("vault engine: strategy not active")
	ErrStrategyDetached     = errors.New("vault engine: strategy collaborator not attached")
	ErrStrategyMismatch     = errors.New("vault engine: strategy asset or vault mismatch")
	ErrSameStrategy         = errors.New("vault engine: old and new strategy are identical")
	ErrDebtRatioOverflow    = errors.New("vault engine: debt ratio sum exceeds 10000 bps")
	ErrDebtBounds           = errors.New("vault engine: min debt per harvest exceeds max")
	ErrFeeTooHigh           = errors.New("vault engine: fee exceeds maximum")
	ErrDegradationTooHigh   = errors.New("vault engine: degradation exceeds coefficient")
	ErrLossExceedsDebt      = errors.New("vault engine: loss exceeds strategy debt")
	ErrQueueFull            = errors.New("vault engine: withdrawal queue full")
	ErrQueueDuplicate       = errors.New("vault engine: strategy already in withdrawal queue")
	ErrQueueMissing         = errors.New("vault engine: strategy not in withdrawal queue")
	ErrQueueIncomplete      = errors.New("vault engine: new queue drops a queued strategy")
	ErrHealthCheckFailed    = errors.New("vault engine: health check rejected report")
	ErrArithmeticOverflow   = errors.New("vault engine: arithmetic overflow")
	ErrArithmeticUnderflow  = errors.New("vault engine: arithmetic underflow")
	ErrDivisionByZero       = errors.New("vault engine: division by zero")
	ErrInvalidHealthLimits  = errors.New("vault engine: health check limit exceeds 10000 bps")
	ErrInvariantViolation   = errors.New("vault engine: ledger invariant violated")
	ErrStrategyOverreported = errors.New("vault engine: strategy reported more freed assets than transferred")
	ErrContractNotApproved  = errors.New("vault engine: contract caller not approved")
	ErrClaimAssetUnset      = errors.New("vault engine: claim asset not configured")
)
