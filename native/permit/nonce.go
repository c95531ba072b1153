package permit

import (
	"fmt"
	"math"

	"permitledger/crypto"
)

type nonceState interface {
	Nonce(addr crypto.Address) (uint64, error)
	SetNonce(addr crypto.Address, nonce uint64) error
}

// NonceGuard owns the per-account permit counter. Only the next nonce in
// sequence is ever acceptable, so authorizations settle strictly in order
// and each one at most once.
type NonceGuard struct {
	state nonceState
}

// NewNonceGuard wraps the provided nonce state.
func NewNonceGuard(state nonceState) *NonceGuard {
	return &NonceGuard{state: state}
}

// NonceOf returns the nonce the next authorization from addr must carry.
func (g *NonceGuard) NonceOf(addr crypto.Address) (uint64, error) {
	if g == nil || g.state == nil {
		return 0, errNilState
	}
	return g.state.Nonce(addr)
}

// Check reports whether provided equals the current nonce of addr.
func (g *NonceGuard) Check(addr crypto.Address, provided uint64) (bool, error) {
	current, err := g.NonceOf(addr)
	if err != nil {
		return false, err
	}
	return provided == current, nil
}

// Advance consumes the current nonce of addr.
func (g *NonceGuard) Advance(addr crypto.Address) error {
	current, err := g.NonceOf(addr)
	if err != nil {
		return err
	}
	if current == math.MaxUint64 {
		return fmt.Errorf("permit: nonce space exhausted for %s", addr)
	}
	return g.state.SetNonce(addr, current+1)
}
