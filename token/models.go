// Package token holds the immutable Stokvel token metadata.
package token

import (
	"time"

	"github.com/xraph/stokvel/id"
	"github.com/xraph/stokvel/types"
)

// Immutable token parameters.
const (
	Name        = "Stokvel"
	Symbol      = "STOK"
	Decimals    = uint8(types.BaseUnitDecimals)
	WholeSupply = uint64(10_000_000)
)

// TotalSupply returns the fixed supply in base units (10,000,000 × 10^18).
func TotalSupply() types.Amount {
	return types.Tokens(WholeSupply)
}

// Metadata is written once, at genesis, and never changes.
type Metadata struct {
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	Decimals     uint8           `json:"decimals"`
	TotalSupply  types.Amount    `json:"total_supply"`
	Creator      types.Address   `json:"creator"`
	DeploymentID id.DeploymentID `json:"deployment_id"`
	OperationID  id.OperationID  `json:"operation_id"`
	DeployedAt   time.Time       `json:"deployed_at"`
}

// NewMetadata returns genesis metadata minting the whole supply to creator.
func NewMetadata(creator types.Address, opID id.OperationID, at time.Time) *Metadata {
	return &Metadata{
		Name:         Name,
		Symbol:       Symbol,
		Decimals:     Decimals,
		TotalSupply:  TotalSupply(),
		Creator:      creator,
		DeploymentID: id.NewDeploymentID(),
		OperationID:  opID,
		DeployedAt:   at.UTC(),
	}
}

// FormatAmount renders a base-unit amount in whole tokens with the token symbol.
func FormatAmount(a types.Amount) string {
	return a.Format(Decimals) + " " + Symbol
}
