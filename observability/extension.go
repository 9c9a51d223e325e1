// Package observability provides a metrics extension for Stokvel that records
// operation and event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/plugin"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin         = (*MetricsExtension)(nil)
	_ plugin.OnInit         = (*MetricsExtension)(nil)
	_ plugin.OnGenesis      = (*MetricsExtension)(nil)
	_ plugin.OnTransfer     = (*MetricsExtension)(nil)
	_ plugin.OnApproval     = (*MetricsExtension)(nil)
	_ plugin.OnSupplierPaid = (*MetricsExtension)(nil)
	_ plugin.OnRejected     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records token activity metrics.
// Register it as a Ledger plugin to track transfers, approvals and payments.
type MetricsExtension struct {
	factory MetricFactory

	// Genesis
	Deployments Counter

	// Event metrics
	Transfers       Counter
	MintTransfers   Counter
	Approvals       Counter
	SupplierPayouts Counter

	// Amount metrics, in whole tokens
	TransferAmount Histogram
	SupplierAmount Histogram

	// Rejection metrics
	Rejections           Counter
	RejectedRecipient    Counter
	RejectedBalance      Counter
	RejectedAllowance    Counter
	RejectedAmount       Counter
	RejectedSender       Counter
	RejectedUnclassified Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Metric names carry no product prefix; the factory supplies the namespace.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		Deployments: factory.Counter("token.deployments"),

		Transfers:       factory.Counter("transfers"),
		MintTransfers:   factory.Counter("transfers.mint"),
		Approvals:       factory.Counter("approvals"),
		SupplierPayouts: factory.Counter("supplier.payments"),

		TransferAmount: factory.Histogram("transfer.amount_tokens"),
		SupplierAmount: factory.Histogram("supplier.amount_tokens"),

		Rejections:           factory.Counter("rejections"),
		RejectedRecipient:    factory.Counter("rejections.invalid_recipient"),
		RejectedBalance:      factory.Counter("rejections.insufficient_balance"),
		RejectedAllowance:    factory.Counter("rejections.insufficient_allowance"),
		RejectedAmount:       factory.Counter("rejections.invalid_amount"),
		RejectedSender:       factory.Counter("rejections.invalid_sender"),
		RejectedUnclassified: factory.Counter("rejections.other"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnGenesis implements plugin.OnGenesis.
func (m *MetricsExtension) OnGenesis(_ context.Context, _ *token.Metadata) error {
	m.Deployments.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Event hooks
// ──────────────────────────────────────────────────

// OnTransfer implements plugin.OnTransfer.
func (m *MetricsExtension) OnTransfer(_ context.Context, e *event.Event) error {
	m.Transfers.Inc()
	if types.IsZeroAddress(e.From) {
		m.MintTransfers.Inc()
	}
	m.TransferAmount.Observe(e.Amount.Float64Tokens(token.Decimals))
	return nil
}

// OnApproval implements plugin.OnApproval.
func (m *MetricsExtension) OnApproval(_ context.Context, _ *event.Event) error {
	m.Approvals.Inc()
	return nil
}

// OnSupplierPaid implements plugin.OnSupplierPaid.
func (m *MetricsExtension) OnSupplierPaid(_ context.Context, e *event.Event) error {
	m.SupplierPayouts.Inc()
	m.SupplierAmount.Observe(e.Amount.Float64Tokens(token.Decimals))
	return nil
}

// ──────────────────────────────────────────────────
// Rejection hooks
// ──────────────────────────────────────────────────

// OnRejected implements plugin.OnRejected.
func (m *MetricsExtension) OnRejected(_ context.Context, r *plugin.Rejection) error {
	m.Rejections.Inc()
	m.rejectionCounter(r.Kind).Inc()
	return nil
}

// rejectionCounter maps a rejection kind, as carried in plugin.Rejection,
// to its counter.
func (m *MetricsExtension) rejectionCounter(kind string) Counter {
	switch kind {
	case stokvel.ErrInvalidRecipient.Error():
		return m.RejectedRecipient
	case stokvel.ErrInsufficientBalance.Error():
		return m.RejectedBalance
	case stokvel.ErrInsufficientAllowance.Error():
		return m.RejectedAllowance
	case stokvel.ErrInvalidAmount.Error():
		return m.RejectedAmount
	case stokvel.ErrInvalidSender.Error():
		return m.RejectedSender
	default:
		return m.RejectedUnclassified
	}
}
