package token

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	ledgererrors "permitledger/core/errors"
	"permitledger/core/events"
	"permitledger/core/state"
	"permitledger/crypto"
	"permitledger/storage"
)

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func testAddr(b byte) crypto.Address {
	var addr crypto.Address
	addr[0] = b
	addr[31] = b
	return addr
}

var (
	deployer = testAddr(0xd0)
	alice    = testAddr(0xa1)
	bob      = testAddr(0xb0)
	carol    = testAddr(0xc0)
)

func newTestEngine(t *testing.T, supply uint64) (*Engine, *state.Manager, *recordingEmitter) {
	t.Helper()
	mgr := state.NewManager(state.NewChangeset(storage.NewMemDB()))
	engine := NewEngine()
	engine.SetState(mgr)
	require.NoError(t, engine.Initialize(deployer, state.TokenMetadata{
		Name:        "Permit Token",
		Symbol:      "PMT",
		Decimals:    9,
		TotalSupply: uint256.NewInt(supply),
	}))
	rec := &recordingEmitter{}
	engine.SetEmitter(rec)
	return engine, mgr, rec
}

func balance(t *testing.T, e *Engine, addr crypto.Address) uint64 {
	t.Helper()
	bal, err := e.BalanceOf(addr)
	require.NoError(t, err)
	return bal.Uint64()
}

func sumBalances(t *testing.T, e *Engine, addrs ...crypto.Address) uint64 {
	t.Helper()
	var total uint64
	for _, a := range addrs {
		total += balance(t, e, a)
	}
	return total
}

func TestInitializeCreditsDeployer(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1_000_000)
	require.Equal(t, uint64(1_000_000), balance(t, engine, deployer))
	require.Zero(t, balance(t, engine, alice))

	meta, err := engine.Metadata()
	require.NoError(t, err)
	require.Equal(t, "PMT", meta.Symbol)
	require.Equal(t, uint64(1_000_000), meta.TotalSupply.Uint64())

	err = engine.Initialize(deployer, state.TokenMetadata{Name: "x", Symbol: "X", TotalSupply: uint256.NewInt(1)})
	require.ErrorIs(t, err, state.ErrAlreadyInitialized)
}

func TestInitializeEmitsMint(t *testing.T) {
	mgr := state.NewManager(state.NewChangeset(storage.NewMemDB()))
	engine := NewEngine()
	engine.SetState(mgr)
	rec := &recordingEmitter{}
	engine.SetEmitter(rec)

	require.NoError(t, engine.Initialize(deployer, state.TokenMetadata{
		Name: "Permit Token", Symbol: "PMT", TotalSupply: uint256.NewInt(42),
	}))
	require.Len(t, rec.events, 1)
	evt := rec.events[0].(events.TokenSupply)
	require.Equal(t, deployer, evt.Account)
	require.Equal(t, uint64(42), evt.Delta.Uint64())
	require.Equal(t, events.SupplyReasonMint, evt.Reason)

	err := engine.Initialize(deployer, state.TokenMetadata{Name: "x", Symbol: "X", TotalSupply: uint256.NewInt(1)})
	require.ErrorIs(t, err, state.ErrAlreadyInitialized)
	require.Len(t, rec.events, 1)
}

func TestTransferMovesFunds(t *testing.T) {
	engine, _, rec := newTestEngine(t, 1_000_000)

	require.NoError(t, engine.Transfer(deployer, alice, uint256.NewInt(250_000)))
	require.Equal(t, uint64(750_000), balance(t, engine, deployer))
	require.Equal(t, uint64(250_000), balance(t, engine, alice))
	require.Equal(t, uint64(1_000_000), sumBalances(t, engine, deployer, alice))

	require.Len(t, rec.events, 1)
	evt := rec.events[0].(events.Transfer)
	require.Equal(t, deployer, evt.From)
	require.Equal(t, alice, evt.To)
	require.Equal(t, uint64(250_000), evt.Amount.Uint64())
}

func TestTransferInsufficientBalanceLeavesState(t *testing.T) {
	engine, _, rec := newTestEngine(t, 100)

	err := engine.Transfer(deployer, alice, uint256.NewInt(101))
	require.ErrorIs(t, err, ledgererrors.ErrInsufficientBalance)
	code, ok := ledgererrors.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, ledgererrors.CodeInsufficientBalance, code)

	require.Equal(t, uint64(100), balance(t, engine, deployer))
	require.Zero(t, balance(t, engine, alice))
	require.Empty(t, rec.events)
}

func TestSelfTransferIsNoopButEmits(t *testing.T) {
	engine, _, rec := newTestEngine(t, 100)

	require.NoError(t, engine.Transfer(deployer, deployer, uint256.NewInt(40)))
	require.Equal(t, uint64(100), balance(t, engine, deployer))
	require.Len(t, rec.events, 1)

	err := engine.Transfer(deployer, deployer, uint256.NewInt(101))
	require.ErrorIs(t, err, ledgererrors.ErrInsufficientBalance)
}

func TestTransferToZeroAddressRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, 100)
	err := engine.Transfer(deployer, crypto.ZeroAddress, uint256.NewInt(1))
	require.ErrorIs(t, err, ledgererrors.ErrZeroAddress)
	require.Equal(t, uint64(100), balance(t, engine, deployer))
}

func TestApproveOverwrites(t *testing.T) {
	engine, _, rec := newTestEngine(t, 100)

	require.NoError(t, engine.Approve(deployer, alice, uint256.NewInt(30)))
	require.NoError(t, engine.Approve(deployer, alice, uint256.NewInt(10)))

	allowance, err := engine.Allowance(deployer, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(10), allowance.Uint64())
	require.Len(t, rec.events, 2)
	require.IsType(t, events.Approval{}, rec.events[1])
}

func TestIncreaseDecreaseAllowance(t *testing.T) {
	engine, _, _ := newTestEngine(t, 100)

	require.NoError(t, engine.IncreaseAllowance(deployer, alice, uint256.NewInt(5)))
	require.NoError(t, engine.IncreaseAllowance(deployer, alice, uint256.NewInt(7)))
	allowance, err := engine.Allowance(deployer, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(12), allowance.Uint64())

	require.NoError(t, engine.DecreaseAllowance(deployer, alice, uint256.NewInt(2)))
	allowance, err = engine.Allowance(deployer, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(10), allowance.Uint64())

	require.NoError(t, engine.DecreaseAllowance(deployer, alice, uint256.NewInt(50)))
	allowance, err = engine.Allowance(deployer, alice)
	require.NoError(t, err)
	require.True(t, allowance.IsZero())
}

func TestTransferFrom(t *testing.T) {
	engine, _, rec := newTestEngine(t, 1_000)
	require.NoError(t, engine.Approve(deployer, alice, uint256.NewInt(300)))
	rec.events = nil

	require.NoError(t, engine.TransferFrom(alice, deployer, bob, uint256.NewInt(120)))
	allowance, err := engine.Allowance(deployer, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(180), allowance.Uint64())
	require.Equal(t, uint64(880), balance(t, engine, deployer))
	require.Equal(t, uint64(120), balance(t, engine, bob))
	require.Zero(t, balance(t, engine, alice))
	require.Equal(t, uint64(1_000), sumBalances(t, engine, deployer, alice, bob))

	require.Len(t, rec.events, 1)
	evt := rec.events[0].(events.Transfer)
	require.Equal(t, deployer, evt.From)
	require.Equal(t, bob, evt.To)
}

func TestTransferFromChecksAllowanceFirst(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1_000)
	require.NoError(t, engine.Transfer(deployer, carol, uint256.NewInt(10)))
	require.NoError(t, engine.Approve(carol, alice, uint256.NewInt(5)))

	// Both the allowance and the balance are short; allowance wins.
	err := engine.TransferFrom(alice, carol, bob, uint256.NewInt(50))
	require.ErrorIs(t, err, ledgererrors.ErrInsufficientAllowance)

	require.NoError(t, engine.Approve(carol, alice, uint256.NewInt(500)))
	err = engine.TransferFrom(alice, carol, bob, uint256.NewInt(50))
	require.ErrorIs(t, err, ledgererrors.ErrInsufficientBalance)

	allowance, err := engine.Allowance(carol, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(500), allowance.Uint64())
	require.Equal(t, uint64(10), balance(t, engine, carol))
}

func TestEngineWithoutState(t *testing.T) {
	engine := NewEngine()
	_, err := engine.BalanceOf(alice)
	require.ErrorIs(t, err, errNilState)
}

func TestEventsOwnTheirAmount(t *testing.T) {
	engine, _, rec := newTestEngine(t, 1_000)

	amount := uint256.NewInt(40)
	require.NoError(t, engine.Approve(deployer, alice, amount))
	require.NoError(t, engine.Transfer(deployer, bob, amount))
	require.NoError(t, engine.TransferFrom(alice, deployer, carol, amount))
	amount.SetUint64(7)

	require.Len(t, rec.events, 3)
	require.Equal(t, uint64(40), rec.events[0].(events.Approval).Amount.Uint64())
	require.Equal(t, uint64(40), rec.events[1].(events.Transfer).Amount.Uint64())
	require.Equal(t, uint64(40), rec.events[2].(events.Transfer).Amount.Uint64())
}
