package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/id"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// Addresses are stored as lowercase 0x-hex so text order equals byte order.
// Amounts are decimal strings; times are RFC3339Nano in UTC.

type tokenModel struct {
	ID           int    `db:"id"`
	Name         string `db:"name"`
	Symbol       string `db:"symbol"`
	Decimals     int    `db:"decimals"`
	TotalSupply  string `db:"total_supply"`
	Creator      string `db:"creator"`
	DeploymentID string `db:"deployment_id"`
	OperationID  string `db:"operation_id"`
	DeployedAt   string `db:"deployed_at"`
}

type balanceModel struct {
	Account   string `db:"account"`
	Amount    string `db:"amount"`
	UpdatedAt string `db:"updated_at"`
}

type allowanceModel struct {
	Owner     string `db:"owner"`
	Spender   string `db:"spender"`
	Amount    string `db:"amount"`
	UpdatedAt string `db:"updated_at"`
}

type eventModel struct {
	Sequence    int64  `db:"sequence"`
	ID          string `db:"id"`
	OperationID string `db:"operation_id"`
	Kind        string `db:"kind"`
	FromAddr    string `db:"from_addr"`
	ToAddr      string `db:"to_addr"`
	Owner       string `db:"owner"`
	Spender     string `db:"spender"`
	Supplier    string `db:"supplier"`
	Amount      string `db:"amount"`
	OccurredAt  string `db:"occurred_at"`
}

func addr(a types.Address) string {
	return strings.ToLower(a.Hex())
}

func parseAddr(s string) types.Address {
	return common.HexToAddress(s)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func toTokenModel(m *token.Metadata) *tokenModel {
	return &tokenModel{
		ID:           1,
		Name:         m.Name,
		Symbol:       m.Symbol,
		Decimals:     int(m.Decimals),
		TotalSupply:  m.TotalSupply.String(),
		Creator:      addr(m.Creator),
		DeploymentID: m.DeploymentID.String(),
		OperationID:  m.OperationID.String(),
		DeployedAt:   ts(m.DeployedAt),
	}
}

func fromTokenModel(m *tokenModel) (*token.Metadata, error) {
	supply, err := types.ParseAmount(m.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("parse total supply: %w", err)
	}
	depID, err := id.ParseDeploymentID(m.DeploymentID)
	if err != nil {
		return nil, fmt.Errorf("parse deployment id: %w", err)
	}
	opID, err := id.ParseOperationID(m.OperationID)
	if err != nil {
		return nil, fmt.Errorf("parse operation id: %w", err)
	}
	at, err := parseTS(m.DeployedAt)
	if err != nil {
		return nil, fmt.Errorf("parse deployed_at: %w", err)
	}
	return &token.Metadata{
		Name:         m.Name,
		Symbol:       m.Symbol,
		Decimals:     uint8(m.Decimals), //nolint:gosec // stored from a uint8
		TotalSupply:  supply,
		Creator:      parseAddr(m.Creator),
		DeploymentID: depID,
		OperationID:  opID,
		DeployedAt:   at,
	}, nil
}

func toBalanceModel(b *balance.Balance) *balanceModel {
	return &balanceModel{
		Account:   addr(b.Account),
		Amount:    b.Amount.String(),
		UpdatedAt: ts(b.UpdatedAt),
	}
}

func fromBalanceModel(m *balanceModel) (*balance.Balance, error) {
	amt, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	at, err := parseTS(m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &balance.Balance{Account: parseAddr(m.Account), Amount: amt, UpdatedAt: at}, nil
}

func toAllowanceModel(a *allowance.Allowance) *allowanceModel {
	return &allowanceModel{
		Owner:     addr(a.Owner),
		Spender:   addr(a.Spender),
		Amount:    a.Amount.String(),
		UpdatedAt: ts(a.UpdatedAt),
	}
}

func fromAllowanceModel(m *allowanceModel) (*allowance.Allowance, error) {
	amt, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	at, err := parseTS(m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &allowance.Allowance{
		Owner:     parseAddr(m.Owner),
		Spender:   parseAddr(m.Spender),
		Amount:    amt,
		UpdatedAt: at,
	}, nil
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		Sequence:    int64(e.Sequence), //nolint:gosec // sequences stay far below 2^63
		ID:          e.ID.String(),
		OperationID: e.OperationID.String(),
		Kind:        string(e.Kind),
		FromAddr:    addr(e.From),
		ToAddr:      addr(e.To),
		Owner:       addr(e.Owner),
		Spender:     addr(e.Spender),
		Supplier:    addr(e.Supplier),
		Amount:      e.Amount.String(),
		OccurredAt:  ts(e.OccurredAt),
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	opID, err := id.ParseOperationID(m.OperationID)
	if err != nil {
		return nil, fmt.Errorf("parse operation id: %w", err)
	}
	amt, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	at, err := parseTS(m.OccurredAt)
	if err != nil {
		return nil, err
	}
	return &event.Event{
		ID:          evtID,
		Sequence:    uint64(m.Sequence), //nolint:gosec // never negative
		OperationID: opID,
		Kind:        event.Kind(m.Kind),
		From:        parseAddr(m.FromAddr),
		To:          parseAddr(m.ToAddr),
		Owner:       parseAddr(m.Owner),
		Spender:     parseAddr(m.Spender),
		Supplier:    parseAddr(m.Supplier),
		Amount:      amt,
		OccurredAt:  at,
	}, nil
}
