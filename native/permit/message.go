package permit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"permitledger/crypto"
)

const (
	// WalletPrefix is the line wallets prepend before signing arbitrary
	// messages.
	WalletPrefix = "Casper Message:"
	// ProtocolTag names the permit message format.
	ProtocolTag = "x402-casper"
)

// Domain binds permits to one network and one token contract so a signature
// cannot be replayed elsewhere.
type Domain struct {
	NetworkID  string
	ContractID string
}

// Validate rejects identifiers that would make the canonical message
// ambiguous: empty ones, and ones containing the field separator or a line
// break.
func (d Domain) Validate() error {
	for _, field := range []struct{ name, value string }{
		{"network id", d.NetworkID},
		{"contract id", d.ContractID},
	} {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("permit: domain %s must not be empty", field.name)
		}
		if strings.ContainsAny(field.value, ":\r\n") {
			return fmt.Errorf("permit: domain %s %q must not contain ':' or line breaks", field.name, field.value)
		}
	}
	return nil
}

// Message returns the canonical bytes a signer must sign for the given
// payment under this domain.
func (d Domain) Message(recipient crypto.Address, amount *uint256.Int, nonce, deadline uint64) []byte {
	return CanonicalMessage(WalletPrefix, d.NetworkID, d.ContractID, recipient, amount, nonce, deadline)
}

// CanonicalMessage renders
//
//	<prefix>\n<ProtocolTag>:<network>:<contract>:<recipient>:<amount>:<nonce>:<deadline>
//
// Numbers are base-10 without leading zeros; the recipient uses its bech32
// account form. The output is byte-exact across implementations.
func CanonicalMessage(prefix, networkID, contractID string, recipient crypto.Address, amount *uint256.Int, nonce, deadline uint64) []byte {
	amountStr := "0"
	if amount != nil {
		amountStr = amount.Dec()
	}
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('\n')
	b.WriteString(ProtocolTag)
	for _, field := range []string{
		networkID,
		contractID,
		recipient.String(),
		amountStr,
		strconv.FormatUint(nonce, 10),
		strconv.FormatUint(deadline, 10),
	} {
		b.WriteByte(':')
		b.WriteString(field)
	}
	return []byte(b.String())
}
