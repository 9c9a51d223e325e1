package stokvel

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// Rejection kinds. Operations that fail one of the ledger checks return a
	// *RejectionError wrapping exactly one of these.
	ErrInvalidRecipient      = errors.New("stokvel: invalid recipient")
	ErrInsufficientBalance   = errors.New("stokvel: insufficient balance")
	ErrInsufficientAllowance = errors.New("stokvel: insufficient allowance")
	ErrInvalidAmount         = errors.New("stokvel: invalid amount")
	ErrInvalidSender         = errors.New("stokvel: invalid sender")

	// Lifecycle errors
	ErrNotDeployed     = errors.New("stokvel: token not deployed")
	ErrAlreadyDeployed = errors.New("stokvel: token already deployed")
	ErrNotStarted      = errors.New("stokvel: ledger not started")

	// General errors
	ErrNotFound     = errors.New("stokvel: not found")
	ErrInvalidInput = errors.New("stokvel: invalid input")

	// Store errors
	ErrStoreClosed       = errors.New("stokvel: store is closed")
	ErrTransactionFailed = errors.New("stokvel: transaction failed")
	ErrMigrationFailed   = errors.New("stokvel: migration failed")

	// Invariant errors. These indicate corrupted state, never a caller mistake.
	ErrSupplyViolation = errors.New("stokvel: supply conservation violated")

	// Host errors
	ErrRateLimited     = errors.New("stokvel: rate limited")
	ErrExecutorStopped = errors.New("stokvel: executor stopped")
)

// Reason strings attached to rejections.
const (
	ReasonTransferToZero        = "ERC20: transfer to the zero address"
	ReasonTransferFromZero      = "ERC20: transfer from the zero address"
	ReasonApproveToZero         = "ERC20: approve to the zero address"
	ReasonMintToZero            = "ERC20: mint to the zero address"
	ReasonTransferExceedsBal    = "ERC20: transfer amount exceeds balance"
	ReasonInsufficientAllowance = "ERC20: insufficient allowance"
	ReasonPayToZero             = "StokvelToken: pay to the zero address"
	ReasonPayZeroAmount         = "StokvelToken: payment amount must be greater than zero"
	ReasonPayInsufficientBal    = "StokvelToken: insufficient balance"
)

// RejectionError is returned when an operation fails a ledger check. State is
// unchanged and no event was emitted.
type RejectionError struct {
	Op     string
	Kind   error
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

func (e *RejectionError) Unwrap() error {
	return e.Kind
}

func reject(op string, kind error, reason string) *RejectionError {
	return &RejectionError{Op: op, Kind: kind, Reason: reason}
}

// InvariantError reports a broken ledger invariant, such as a credit that
// would push a balance past the total supply.
type InvariantError struct {
	Op      string
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("stokvel: invariant violated in %s: %s", e.Op, e.Message)
}

func (e *InvariantError) Unwrap() error {
	return ErrSupplyViolation
}

// IsRejection returns true if err is a caller-facing rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// RejectionReason returns the human-readable reason of a rejection, or "".
func RejectionReason(err error) string {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNotDeployed)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
// Rejections are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrRateLimited)
}
