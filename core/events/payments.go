package events

import (
	"strconv"

	"github.com/holiman/uint256"

	"permitledger/core/types"
	"permitledger/crypto"
)

const (
	// TypePaymentClaimed is emitted once a signed payment authorization has
	// been settled and its nonce consumed.
	TypePaymentClaimed = "permit.payment_claimed"
)

// PaymentClaimed records a settled permit. Nonce is the value the signer
// committed to, i.e. the nonce before the advance.
type PaymentClaimed struct {
	User      crypto.Address
	Recipient crypto.Address
	Amount    *uint256.Int
	Nonce     uint64
}

// EventType satisfies the events.Event interface.
func (PaymentClaimed) EventType() string { return TypePaymentClaimed }

// Event converts the structured payload into a wire-friendly representation.
func (e PaymentClaimed) Event() *types.Event {
	return &types.Event{Type: TypePaymentClaimed, Attributes: map[string]string{
		"user":      e.User.String(),
		"recipient": e.Recipient.String(),
		"amount":    formatAmount(e.Amount),
		"nonce":     strconv.FormatUint(e.Nonce, 10),
	}}
}
