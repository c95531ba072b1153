package events

import (
	"github.com/holiman/uint256"

	"permitledger/core/types"
	"permitledger/crypto"
)

const (
	// TypeTransfer is emitted for every balance movement, including
	// self-transfers and permit settlements.
	TypeTransfer = "token.transfer"
	// TypeApproval is emitted whenever an allowance is written.
	TypeApproval = "token.approval"
)

type Transfer struct {
	From   crypto.Address
	To     crypto.Address
	Amount *uint256.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{Type: TypeTransfer, Attributes: map[string]string{
		"from":   e.From.String(),
		"to":     e.To.String(),
		"amount": formatAmount(e.Amount),
	}}
}

type Approval struct {
	Owner   crypto.Address
	Spender crypto.Address
	Amount  *uint256.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{Type: TypeApproval, Attributes: map[string]string{
		"owner":   e.Owner.String(),
		"spender": e.Spender.String(),
		"amount":  formatAmount(e.Amount),
	}}
}
