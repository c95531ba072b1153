package events

import (
	"testing"

	"github.com/holiman/uint256"

	"permitledger/crypto"
)

func TestPaymentClaimedAttributes(t *testing.T) {
	var user, recipient crypto.Address
	user[0], recipient[0] = 0x01, 0x02
	evt := PaymentClaimed{User: user, Recipient: recipient, Amount: uint256.NewInt(5), Nonce: 7}.Event()

	if evt.Type != TypePaymentClaimed {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	want := map[string]string{
		"user":      user.String(),
		"recipient": recipient.String(),
		"amount":    "5",
		"nonce":     "7",
	}
	for k, v := range want {
		if evt.Attributes[k] != v {
			t.Fatalf("attribute %s: got %q want %q", k, evt.Attributes[k], v)
		}
	}
}

func TestTransferNilAmountRendersZero(t *testing.T) {
	evt := Transfer{}.Event()
	if evt.Attributes["amount"] != "0" {
		t.Fatalf("expected zero amount, got %q", evt.Attributes["amount"])
	}
}

func TestBufferPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(Approval{Amount: uint256.NewInt(1)})
	buf.Emit(nil)
	buf.Emit(Transfer{Amount: uint256.NewInt(2)})

	got := buf.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventType() != TypeApproval || got[1].EventType() != TypeTransfer {
		t.Fatalf("unexpected order: %s, %s", got[0].EventType(), got[1].EventType())
	}
	buf.Reset()
	if len(buf.Events()) != 0 {
		t.Fatalf("reset did not clear buffer")
	}
}
