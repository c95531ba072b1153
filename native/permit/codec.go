package permit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	ledgererrors "permitledger/core/errors"
	"permitledger/crypto"
)

// authorizationJSON is the form facilitators exchange. Amount is a decimal
// string so 256-bit values survive JSON number handling.
type authorizationJSON struct {
	Signer    string `json:"signer"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Deadline  uint64 `json:"deadline"`
	Signature string `json:"signature"`
}

// MarshalJSON implements json.Marshaler.
func (a Authorization) MarshalJSON() ([]byte, error) {
	if a.Signer == nil {
		return nil, fmt.Errorf("permit: authorization has no signer")
	}
	amount := "0"
	if a.Amount != nil {
		amount = a.Amount.Dec()
	}
	return json.Marshal(authorizationJSON{
		Signer:    a.Signer.String(),
		Recipient: a.Recipient.String(),
		Amount:    amount,
		Nonce:     a.Nonce,
		Deadline:  a.Deadline,
		Signature: hex.EncodeToString(a.Signature),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The signature is decoded but not
// checked; that happens at settlement. A signer key or signature that does
// not decode is reported as ErrInvalidSignature.
func (a *Authorization) UnmarshalJSON(data []byte) error {
	var raw authorizationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	signer, err := crypto.ParsePublicKey(raw.Signer)
	if err != nil {
		return fmt.Errorf("permit: signer: %v: %w", err, ledgererrors.ErrInvalidSignature)
	}
	recipient, err := crypto.DecodeAddress(raw.Recipient)
	if err != nil {
		return fmt.Errorf("permit: recipient: %w", err)
	}
	amount, err := uint256.FromDecimal(strings.TrimSpace(raw.Amount))
	if err != nil {
		return fmt.Errorf("permit: amount %q: %w", raw.Amount, err)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw.Signature), "0x"))
	if err != nil {
		return fmt.Errorf("permit: signature: %v: %w", err, ledgererrors.ErrInvalidSignature)
	}
	*a = Authorization{
		Signer:    signer,
		Recipient: recipient,
		Amount:    amount,
		Nonce:     raw.Nonce,
		Deadline:  raw.Deadline,
		Signature: sig,
	}
	return nil
}
