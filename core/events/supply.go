package events

import (
	"strings"

	"github.com/holiman/uint256"

	"permitledger/core/types"
	"permitledger/crypto"
)

const (
	// TypeTokenSupply is emitted when the token supply is created.
	TypeTokenSupply = "token.supply"

	// SupplyReasonMint identifies the one-off mint at initialisation.
	SupplyReasonMint = "mint"
)

// TokenSupply captures a supply change and the account it was credited to.
type TokenSupply struct {
	Token   string
	Account crypto.Address
	Total   *uint256.Int
	Delta   *uint256.Int
	Reason  string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{}
	token := strings.ToUpper(strings.TrimSpace(e.Token))
	if token == "" {
		token = "UNKNOWN"
	}
	attrs["token"] = token
	attrs["account"] = e.Account.String()
	attrs["total"] = formatAmount(e.Total)
	if e.Delta != nil {
		attrs["delta"] = e.Delta.Dec()
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		attrs["reason"] = reason
	}
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
