package mongo

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

// Amounts are decimal strings: BSON has no unsigned 256-bit type and
// Decimal128 tops out at 34 digits.

const tokenDocID = "token"

type tokenModel struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Symbol       string    `bson:"symbol"`
	Decimals     int32     `bson:"decimals"`
	TotalSupply  string    `bson:"total_supply"`
	Creator      string    `bson:"creator"`
	DeploymentID string    `bson:"deployment_id"`
	OperationID  string    `bson:"operation_id"`
	DeployedAt   time.Time `bson:"deployed_at"`
}

type balanceModel struct {
	Account   string    `bson:"_id"`
	Amount    string    `bson:"amount"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type allowanceKeyModel struct {
	Owner   string `bson:"owner"`
	Spender string `bson:"spender"`
}

type allowanceModel struct {
	Key       allowanceKeyModel `bson:"_id"`
	Owner     string            `bson:"owner"`
	Spender   string            `bson:"spender"`
	Amount    string            `bson:"amount"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

type eventModel struct {
	Sequence    int64     `bson:"_id"`
	ID          string    `bson:"event_id"`
	OperationID string    `bson:"operation_id"`
	Kind        string    `bson:"kind"`
	From        string    `bson:"from"`
	To          string    `bson:"to"`
	Owner       string    `bson:"owner"`
	Spender     string    `bson:"spender"`
	Supplier    string    `bson:"supplier"`
	Amount      string    `bson:"amount"`
	OccurredAt  time.Time `bson:"occurred_at"`
}

func addr(a types.Address) string {
	return strings.ToLower(a.Hex())
}

func parseAddr(s string) types.Address {
	return common.HexToAddress(s)
}

func toTokenModel(m *token.Metadata) *tokenModel {
	return &tokenModel{
		ID:           tokenDocID,
		Name:         m.Name,
		Symbol:       m.Symbol,
		Decimals:     int32(m.Decimals),
		TotalSupply:  m.TotalSupply.String(),
		Creator:      addr(m.Creator),
		DeploymentID: m.DeploymentID.String(),
		OperationID:  m.OperationID.String(),
		DeployedAt:   m.DeployedAt.UTC(),
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
	return &token.Metadata{
		Name:         m.Name,
		Symbol:       m.Symbol,
		Decimals:     uint8(m.Decimals), //nolint:gosec // stored from a uint8
		TotalSupply:  supply,
		Creator:      parseAddr(m.Creator),
		DeploymentID: depID,
		OperationID:  opID,
		DeployedAt:   m.DeployedAt.UTC(),
	}, nil
}

func toBalanceModel(b *balance.Balance) *balanceModel {
	return &balanceModel{
		Account:   addr(b.Account),
		Amount:    b.Amount.String(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}
}

func fromBalanceModel(m *balanceModel) (*balance.Balance, error) {
	amt, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	return &balance.Balance{Account: parseAddr(m.Account), Amount: amt, UpdatedAt: m.UpdatedAt.UTC()}, nil
}

func toAllowanceModel(a *allowance.Allowance) *allowanceModel {
	owner, spender := addr(a.Owner), addr(a.Spender)
	return &allowanceModel{
		Key:       allowanceKeyModel{Owner: owner, Spender: spender},
		Owner:     owner,
		Spender:   spender,
		Amount:    a.Amount.String(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
}

func fromAllowanceModel(m *allowanceModel) (*allowance.Allowance, error) {
	amt, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	return &allowance.Allowance{
		Owner:     parseAddr(m.Owner),
		Spender:   parseAddr(m.Spender),
		Amount:    amt,
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		Sequence:    int64(e.Sequence), //nolint:gosec // sequences stay far below 2^63
		ID:          e.ID.String(),
		OperationID: e.OperationID.String(),
		Kind:        string(e.Kind),
		From:        addr(e.From),
		To:          addr(e.To),
		Owner:       addr(e.Owner),
		Spender:     addr(e.Spender),
		Supplier:    addr(e.Supplier),
		Amount:      e.Amount.String(),
		OccurredAt:  e.OccurredAt.UTC(),
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
	return &event.Event{
		ID:          evtID,
		Sequence:    uint64(m.Sequence), //nolint:gosec // never negative
		OperationID: opID,
		Kind:        event.Kind(m.Kind),
		From:        parseAddr(m.From),
		To:          parseAddr(m.To),
		Owner:       parseAddr(m.Owner),
		Spender:     parseAddr(m.Spender),
		Supplier:    parseAddr(m.Supplier),
		Amount:      amt,
		OccurredAt:  m.OccurredAt.UTC(),
	}, nil
}
