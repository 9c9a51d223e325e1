// Package audithook bridges Stokvel ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/plugin"
	"github.com/xraph/stokvel/token"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin         = (*Extension)(nil)
	_ plugin.OnGenesis      = (*Extension)(nil)
	_ plugin.OnTransfer     = (*Extension)(nil)
	_ plugin.OnApproval     = (*Extension)(nil)
	_ plugin.OnSupplierPaid = (*Extension)(nil)
	_ plugin.OnRejected     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnGenesis implements plugin.OnGenesis.
func (e *Extension) OnGenesis(ctx context.Context, meta *token.Metadata) error {
	return e.record(ctx, ActionTokenDeployed, SeverityInfo, OutcomeSuccess,
		ResourceToken, meta.DeploymentID.String(), CategoryLifecycle, "",
		"creator", meta.Creator.Hex(),
		"symbol", meta.Symbol,
		"total_supply", meta.TotalSupply.String(),
		"operation_id", meta.OperationID.String(),
	)
}

// ──────────────────────────────────────────────────
// Event hooks
// ──────────────────────────────────────────────────

// OnTransfer implements plugin.OnTransfer.
func (e *Extension) OnTransfer(ctx context.Context, evt *event.Event) error {
	return e.record(ctx, ActionTransfer, SeverityInfo, OutcomeSuccess,
		ResourceAccount, evt.From.Hex(), CategoryTransfer, "",
		"sequence", evt.Sequence,
		"operation_id", evt.OperationID.String(),
		"from", evt.From.Hex(),
		"to", evt.To.Hex(),
		"amount", evt.Amount.String(),
	)
}

// OnApproval implements plugin.OnApproval.
func (e *Extension) OnApproval(ctx context.Context, evt *event.Event) error {
	return e.record(ctx, ActionApproval, SeverityInfo, OutcomeSuccess,
		ResourceAllowance, evt.Owner.Hex()+":"+evt.Spender.Hex(), CategoryAccess, "",
		"sequence", evt.Sequence,
		"operation_id", evt.OperationID.String(),
		"owner", evt.Owner.Hex(),
		"spender", evt.Spender.Hex(),
		"amount", evt.Amount.String(),
	)
}

// OnSupplierPaid implements plugin.OnSupplierPaid.
func (e *Extension) OnSupplierPaid(ctx context.Context, evt *event.Event) error {
	return e.record(ctx, ActionSupplierPaid, SeverityInfo, OutcomeSuccess,
		ResourceSupplier, evt.Supplier.Hex(), CategoryPayment, "",
		"sequence", evt.Sequence,
		"operation_id", evt.OperationID.String(),
		"amount", evt.Amount.String(),
		"amount_display", token.FormatAmount(evt.Amount),
	)
}

// OnRejected implements plugin.OnRejected.
func (e *Extension) OnRejected(ctx context.Context, r *plugin.Rejection) error {
	return e.record(ctx, ActionOperationRejected, SeverityWarning, OutcomeFailure,
		ResourceAccount, r.Caller.Hex(), CategoryTransfer, r.Reason,
		"operation", r.Operation,
		"operation_id", r.OperationID.String(),
		"kind", r.Kind,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	reason string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
