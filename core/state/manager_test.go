package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"permitledger/core/types"
	"permitledger/crypto"
	"permitledger/storage"
)

func testAddr(b byte) crypto.Address {
	var addr crypto.Address
	addr[0] = b
	addr[crypto.AddressLength-1] = b
	return addr
}

func TestKeyNamespaces(t *testing.T) {
	owner, spender := testAddr(0x01), testAddr(0x02)

	require.Equal(t, "balance/", string(BalanceKey(owner)[:8]))
	require.Len(t, BalanceKey(owner), len("balance/")+crypto.AddressLength)
	require.Len(t, AllowanceKey(owner, spender), len("allowance/")+2*crypto.AddressLength)
	require.NotEqual(t, AllowanceKey(owner, spender), AllowanceKey(spender, owner))
	require.Equal(t, append([]byte("event/"), 0, 0, 0, 0, 0, 0, 0, 7), EventKey(7))
}

func TestManagerDefaultsToZero(t *testing.T) {
	mgr := NewManager(NewChangeset(storage.NewMemDB()))
	addr := testAddr(0x09)

	bal, err := mgr.Balance(addr)
	require.NoError(t, err)
	require.True(t, bal.IsZero())

	allowance, err := mgr.Allowance(addr, testAddr(0x0a))
	require.NoError(t, err)
	require.True(t, allowance.IsZero())

	nonce, err := mgr.Nonce(addr)
	require.NoError(t, err)
	require.Zero(t, nonce)

	meta, err := mgr.Metadata()
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestManagerMetadataWrittenOnce(t *testing.T) {
	mgr := NewManager(NewChangeset(storage.NewMemDB()))
	meta := TokenMetadata{Name: "Permit Token", Symbol: "PMT", Decimals: 9, TotalSupply: uint256.NewInt(1_000_000)}
	require.NoError(t, mgr.SetMetadata(meta))

	got, err := mgr.Metadata()
	require.NoError(t, err)
	require.Equal(t, "Permit Token", got.Name)
	require.Equal(t, "PMT", got.Symbol)
	require.Equal(t, uint8(9), got.Decimals)
	require.Equal(t, uint64(1_000_000), got.TotalSupply.Uint64())

	require.ErrorIs(t, mgr.SetMetadata(meta), ErrAlreadyInitialized)
}

func TestManagerLargeAmounts(t *testing.T) {
	mgr := NewManager(NewChangeset(storage.NewMemDB()))
	addr := testAddr(0x03)
	maxAmount := new(uint256.Int).SetAllOne()

	require.NoError(t, mgr.SetBalance(addr, maxAmount))
	got, err := mgr.Balance(addr)
	require.NoError(t, err)
	require.Equal(t, maxAmount, got)
}

func TestChangesetIsolation(t *testing.T) {
	db := storage.NewMemDB()
	addr := testAddr(0x04)

	cs := NewChangeset(db)
	mgr := NewManager(cs)
	require.NoError(t, mgr.SetBalance(addr, uint256.NewInt(42)))
	require.NoError(t, mgr.SetNonce(addr, 3))

	bal, err := mgr.Balance(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(42), bal.Uint64(), "staged writes must be visible to the changeset")

	fresh := NewManager(NewChangeset(db))
	bal, err = fresh.Balance(addr)
	require.NoError(t, err)
	require.True(t, bal.IsZero(), "staged writes must not leak before commit")

	cs.Discard()
	require.Error(t, cs.Commit())

	cs = NewChangeset(db)
	mgr = NewManager(cs)
	require.NoError(t, mgr.SetBalance(addr, uint256.NewInt(42)))
	require.NoError(t, cs.Commit())

	bal, err = NewManager(NewChangeset(db)).Balance(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(42), bal.Uint64())
	nonce, err := NewManager(NewChangeset(db)).Nonce(addr)
	require.NoError(t, err)
	require.Zero(t, nonce, "discarded nonce write must never land")
}

func TestEventLog(t *testing.T) {
	mgr := NewManager(NewChangeset(storage.NewMemDB()))
	for i, typ := range []string{"a", "b", "c"} {
		seq, err := mgr.AppendEvent(&types.Event{Type: typ, Attributes: map[string]string{"k": typ}})
		require.NoError(t, err)
		require.Equal(t, uint64(i), seq)
	}

	evts, err := mgr.Events(1, 0)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	require.Equal(t, uint64(1), evts[0].Seq)
	require.Equal(t, "b", evts[0].Type)
	require.Equal(t, "c", evts[1].Attributes["k"])

	evts, err = mgr.Events(0, 1)
	require.NoError(t, err)
	require.Len(t, evts, 1)
}

func TestDecodeBalance(t *testing.T) {
	db := storage.NewMemDB()
	cs := NewChangeset(db)
	addr := testAddr(0x05)
	require.NoError(t, NewManager(cs).SetBalance(addr, uint256.NewInt(77)))
	require.NoError(t, cs.Commit())

	var seen int
	require.NoError(t, db.ForEach(BalancePrefix(), func(key, value []byte) error {
		got, bal, err := DecodeBalance(key, value)
		require.NoError(t, err)
		require.Equal(t, addr, got)
		require.Equal(t, uint64(77), bal.Uint64())
		seen++
		return nil
	}))
	require.Equal(t, 1, seen)

	_, _, err := DecodeBalance(NonceKey(addr), []byte{0x01})
	require.Error(t, err)
}
