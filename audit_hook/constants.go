package audithook

// Action constants for audit events.
const (
	// Genesis
	ActionTokenDeployed = "token.deployed"

	// Event actions
	ActionTransfer     = "token.transfer"
	ActionApproval     = "token.approval"
	ActionSupplierPaid = "supplier.paid"

	// Rejections
	ActionOperationRejected = "operation.rejected"
)

// Resource constants for audit events.
const (
	ResourceToken     = "token"
	ResourceAccount   = "account"
	ResourceAllowance = "allowance"
	ResourceSupplier  = "supplier"
)

// Category constants for audit events.
const (
	CategoryLifecycle = "lifecycle"
	CategoryTransfer  = "transfer"
	CategoryAccess    = "access"
	CategoryPayment   = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
