package crypto

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"lukechampine.com/blake3"
)

// AddressLength is the size in bytes of an account hash.
const AddressLength = 32

// AddressHRP is the human-readable part used for the bech32 text form of an
// account hash.
const AddressHRP = "account"

// Address identifies a ledger account. It is the blake3 hash of the signing
// scheme name, a zero separator and the raw public key bytes.
type Address [AddressLength]byte

// ZeroAddress is the null account. It never corresponds to a real key.
var ZeroAddress Address

// AccountHash derives the account identifier owned by the supplied key.
func AccountHash(scheme Scheme, raw []byte) Address {
	name := scheme.String()
	buf := make([]byte, 0, len(name)+1+len(raw))
	buf = append(buf, name...)
	buf = append(buf, 0x00)
	buf = append(buf, raw...)
	return Address(blake3.Sum256(buf))
}

// BytesToAddress copies b into an Address. b must be exactly AddressLength
// bytes long.
func BytesToAddress(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("address must be %d bytes long, got %d", AddressLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// IsZero reports whether the address is the null account.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Bytes returns a copy of the raw account hash.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// Equal reports whether both addresses reference the same account.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressHRP, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MarshalText encodes the address in its bech32 form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a bech32 account string.
func (a *Address) UnmarshalText(text []byte) error {
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// DecodeAddress parses the bech32 text form of an account hash.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressHRP {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return BytesToAddress(conv)
}
