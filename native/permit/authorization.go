package permit

import (
	"errors"

	"github.com/holiman/uint256"

	"permitledger/crypto"
)

// Authorization is a signed, single-use payment permit. It lives only for the
// duration of one settlement call and is never persisted.
type Authorization struct {
	Signer    crypto.PublicKey
	Recipient crypto.Address
	Amount    *uint256.Int
	Nonce     uint64
	Deadline  uint64
	Signature []byte
}

// Account returns the ledger account that pays for the authorization.
func (a *Authorization) Account() crypto.Address {
	if a == nil || a.Signer == nil {
		return crypto.ZeroAddress
	}
	return a.Signer.Address()
}

// Sign builds an authorization for the given payment and signs its canonical
// message with key.
func Sign(key crypto.PrivateKey, domain Domain, recipient crypto.Address, amount *uint256.Int, nonce, deadline uint64) (*Authorization, error) {
	if key == nil {
		return nil, errors.New("permit: signing key required")
	}
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	sig, err := key.Sign(domain.Message(recipient, amount, nonce, deadline))
	if err != nil {
		return nil, err
	}
	return &Authorization{
		Signer:    key.PublicKey(),
		Recipient: recipient,
		Amount:    amount.Clone(),
		Nonce:     nonce,
		Deadline:  deadline,
		Signature: sig,
	}, nil
}
