package postgres

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

// Row types mirror the select lists below. Amount columns are NUMERIC(78,0)
// and are read back through ::text.

type tokenRow struct {
	Name         string    `db:"name"`
	Symbol       string    `db:"symbol"`
	Decimals     int16     `db:"decimals"`
	TotalSupply  string    `db:"total_supply"`
	Creator      string    `db:"creator"`
	DeploymentID string    `db:"deployment_id"`
	OperationID  string    `db:"operation_id"`
	DeployedAt   time.Time `db:"deployed_at"`
}

type balanceRow struct {
	Account   string    `db:"account"`
	Amount    string    `db:"amount"`
	UpdatedAt time.Time `db:"updated_at"`
}

type allowanceRow struct {
	Owner     string    `db:"owner"`
	Spender   string    `db:"spender"`
	Amount    string    `db:"amount"`
	UpdatedAt time.Time `db:"updated_at"`
}

type eventRow struct {
	Sequence    int64     `db:"sequence"`
	ID          string    `db:"id"`
	OperationID string    `db:"operation_id"`
	Kind        string    `db:"kind"`
	FromAddr    string    `db:"from_addr"`
	ToAddr      string    `db:"to_addr"`
	Owner       string    `db:"owner"`
	Spender     string    `db:"spender"`
	Supplier    string    `db:"supplier"`
	Amount      string    `db:"amount"`
	OccurredAt  time.Time `db:"occurred_at"`
}

func addr(a types.Address) string {
	return strings.ToLower(a.Hex())
}

func parseAddr(s string) types.Address {
	return common.HexToAddress(s)
}

func fromTokenRow(r *tokenRow) (*token.Metadata, error) {
	supply, err := types.ParseAmount(r.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("parse total supply: %w", err)
	}
	depID, err := id.ParseDeploymentID(r.DeploymentID)
	if err != nil {
		return nil, fmt.Errorf("parse deployment id: %w", err)
	}
	opID, err := id.ParseOperationID(r.OperationID)
	if err != nil {
		return nil, fmt.Errorf("parse operation id: %w", err)
	}
	return &token.Metadata{
		Name:         r.Name,
		Symbol:       r.Symbol,
		Decimals:     uint8(r.Decimals), //nolint:gosec // stored from a uint8
		TotalSupply:  supply,
		Creator:      parseAddr(r.Creator),
		DeploymentID: depID,
		OperationID:  opID,
		DeployedAt:   r.DeployedAt.UTC(),
	}, nil
}

func fromBalanceRow(r *balanceRow) (*balance.Balance, error) {
	amt, err := types.ParseAmount(r.Amount)
	if err != nil {
		return nil, err
	}
	return &balance.Balance{Account: parseAddr(r.Account), Amount: amt, UpdatedAt: r.UpdatedAt.UTC()}, nil
}

func fromAllowanceRow(r *allowanceRow) (*allowance.Allowance, error) {
	amt, err := types.ParseAmount(r.Amount)
	if err != nil {
		return nil, err
	}
	return &allowance.Allowance{
		Owner:     parseAddr(r.Owner),
		Spender:   parseAddr(r.Spender),
		Amount:    amt,
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

func fromEventRow(r *eventRow) (*event.Event, error) {
	evtID, err := id.ParseEventID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	opID, err := id.ParseOperationID(r.OperationID)
	if err != nil {
		return nil, fmt.Errorf("parse operation id: %w", err)
	}
	amt, err := types.ParseAmount(r.Amount)
	if err != nil {
		return nil, err
	}
	return &event.Event{
		ID:          evtID,
		Sequence:    uint64(r.Sequence), //nolint:gosec // never negative
		OperationID: opID,
		Kind:        event.Kind(r.Kind),
		From:        parseAddr(r.FromAddr),
		To:          parseAddr(r.ToAddr),
		Owner:       parseAddr(r.Owner),
		Spender:     parseAddr(r.Spender),
		Supplier:    parseAddr(r.Supplier),
		Amount:      amt,
		OccurredAt:  r.OccurredAt.UTC(),
	}, nil
}
