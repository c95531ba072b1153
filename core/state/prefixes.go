package state

import (
	"encoding/binary"

	"permitledger/crypto"
)

var (
	metadataKeyBytes   = []byte("token/metadata")
	balancePrefix      = []byte("balance/")
	allowancePrefix    = []byte("allowance/")
	noncePrefix        = []byte("nonce/")
	eventPrefix        = []byte("event/")
	eventCountKeyBytes = []byte("events/count")
)

// MetadataKey returns the key of the token metadata record.
func MetadataKey() []byte { return append([]byte(nil), metadataKeyBytes...) }

// BalanceKey returns the balance slot of addr.
func BalanceKey(addr crypto.Address) []byte {
	return prefixed(balancePrefix, addr[:])
}

// AllowanceKey returns the composite owner‖spender allowance slot.
func AllowanceKey(owner, spender crypto.Address) []byte {
	return prefixed(allowancePrefix, owner[:], spender[:])
}

// NonceKey returns the permit nonce slot of addr.
func NonceKey(addr crypto.Address) []byte {
	return prefixed(noncePrefix, addr[:])
}

// EventKey returns the slot of the event with the given sequence number. The
// big-endian suffix keeps iteration in emission order.
func EventKey(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return prefixed(eventPrefix, buf[:])
}

// BalancePrefix is the shared prefix of all balance slots.
func BalancePrefix() []byte { return append([]byte(nil), balancePrefix...) }

func prefixed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}
