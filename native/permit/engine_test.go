package permit

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	ledgererrors "permitledger/core/errors"
	"permitledger/core/events"
	"permitledger/core/state"
	"permitledger/crypto"
	"permitledger/native/token"
	"permitledger/storage"
)

const testNow = uint64(1_700_000_000)

var testDomain = Domain{NetworkID: "casper-test", ContractID: "hash-c0ffee"}

type harness struct {
	engine  *Engine
	ledger  *token.Engine
	mgr     *state.Manager
	events  *events.Buffer
	signer  crypto.PrivateKey
	account crypto.Address
	payee   crypto.Address
}

func newHarness(t *testing.T, scheme crypto.Scheme, funded uint64) *harness {
	t.Helper()
	signer, err := crypto.GeneratePrivateKey(scheme)
	require.NoError(t, err)

	var deployer, payee crypto.Address
	deployer[0], payee[0] = 0xde, 0xbe

	mgr := state.NewManager(state.NewChangeset(storage.NewMemDB()))
	ledger := token.NewEngine()
	ledger.SetState(mgr)
	require.NoError(t, ledger.Initialize(deployer, state.TokenMetadata{
		Name: "Permit Token", Symbol: "PMT", Decimals: 9, TotalSupply: uint256.NewInt(1_000_000),
	}))
	account := signer.PublicKey().Address()
	if funded > 0 {
		require.NoError(t, ledger.Transfer(deployer, account, uint256.NewInt(funded)))
	}

	buf := &events.Buffer{}
	ledger.SetEmitter(buf)
	engine := NewEngine(testDomain)
	engine.SetState(mgr)
	engine.SetLedger(ledger)
	engine.SetEmitter(buf)
	engine.SetNowFunc(func() uint64 { return testNow })

	return &harness{engine: engine, ledger: ledger, mgr: mgr, events: buf, signer: signer, account: account, payee: payee}
}

func (h *harness) sign(t *testing.T, amount, nonce, deadline uint64) *Authorization {
	t.Helper()
	auth, err := Sign(h.signer, testDomain, h.payee, uint256.NewInt(amount), nonce, deadline)
	require.NoError(t, err)
	return auth
}

func (h *harness) nonce(t *testing.T) uint64 {
	t.Helper()
	n, err := h.engine.NonceOf(h.account)
	require.NoError(t, err)
	return n
}

func (h *harness) balance(t *testing.T, addr crypto.Address) uint64 {
	t.Helper()
	bal, err := h.ledger.BalanceOf(addr)
	require.NoError(t, err)
	return bal.Uint64()
}

func requireCode(t *testing.T, err error, want ledgererrors.Code) {
	t.Helper()
	require.Error(t, err)
	code, ok := ledgererrors.CodeOf(err)
	require.True(t, ok, "expected ledger code, got %v", err)
	require.Equal(t, want, code, "error: %v", err)
}

func TestClaimPaymentSettlesAndConsumesNonce(t *testing.T) {
	for _, scheme := range []crypto.Scheme{crypto.SchemeEd25519, crypto.SchemeSecp256k1} {
		t.Run(scheme.String(), func(t *testing.T) {
			h := newHarness(t, scheme, 100)
			auth := h.sign(t, 5, 0, testNow+60)

			require.NoError(t, h.engine.ClaimPayment(auth))
			require.Equal(t, uint64(1), h.nonce(t))
			require.Equal(t, uint64(95), h.balance(t, h.account))
			require.Equal(t, uint64(5), h.balance(t, h.payee))

			evts := h.events.Events()
			require.Len(t, evts, 2)
			transfer := evts[0].(events.Transfer)
			require.Equal(t, h.account, transfer.From)
			claimed := evts[1].(events.PaymentClaimed)
			require.Equal(t, h.account, claimed.User)
			require.Equal(t, h.payee, claimed.Recipient)
			require.Equal(t, uint64(5), claimed.Amount.Uint64())
			require.Zero(t, claimed.Nonce)

			requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInvalidNonce)
			require.Equal(t, uint64(1), h.nonce(t))
			require.Equal(t, uint64(95), h.balance(t, h.account))
		})
	}
}

func TestClaimPaymentDeadline(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 100)

	requireCode(t, h.engine.ClaimPayment(h.sign(t, 5, 0, testNow-1)), ledgererrors.CodeExpired)
	require.Zero(t, h.nonce(t))
	require.Equal(t, uint64(100), h.balance(t, h.account))

	// A deadline equal to the current time is still valid.
	require.NoError(t, h.engine.ClaimPayment(h.sign(t, 5, 0, testNow)))
}

func TestClaimPaymentTamperedAmount(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 100)
	auth := h.sign(t, 5, 0, testNow+60)
	auth.Amount = uint256.NewInt(6)

	requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInvalidSignature)
	require.Zero(t, h.nonce(t))
	require.Empty(t, h.events.Events())
}

func TestClaimPaymentTamperedFields(t *testing.T) {
	h := newHarness(t, crypto.SchemeSecp256k1, 100)
	var other crypto.Address
	other[3] = 0x77

	cases := map[string]func(a *Authorization){
		"recipient": func(a *Authorization) { a.Recipient = other },
		"deadline":  func(a *Authorization) { a.Deadline++ },
		"signature": func(a *Authorization) { a.Signature[10] ^= 0x01 },
		"zero sig":  func(a *Authorization) { a.Signature = make([]byte, 64) },
		"short sig": func(a *Authorization) { a.Signature = a.Signature[:32] },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			auth := h.sign(t, 5, 0, testNow+60)
			mutate(auth)
			requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInvalidSignature)
			require.Zero(t, h.nonce(t))
		})
	}
}

func TestClaimPaymentWrongSignerKey(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 100)
	auth := h.sign(t, 5, 0, testNow+60)

	impostor, err := crypto.GeneratePrivateKey(crypto.SchemeEd25519)
	require.NoError(t, err)
	auth.Signer = impostor.PublicKey()

	requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInvalidSignature)
	require.Equal(t, uint64(100), h.balance(t, h.account))
}

func TestClaimPaymentInsufficientBalanceKeepsNonce(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 0)
	auth := h.sign(t, 1, 0, testNow+60)

	requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInsufficientBalance)
	require.Zero(t, h.nonce(t), "nonce must not advance when the ledger step fails")
	require.Empty(t, h.events.Events())

	// The same authorization settles once the account is funded.
	var deployer crypto.Address
	deployer[0] = 0xde
	require.NoError(t, h.ledger.Transfer(deployer, h.account, uint256.NewInt(1)))
	require.NoError(t, h.engine.ClaimPayment(auth))
	require.Equal(t, uint64(1), h.nonce(t))
}

func TestClaimPaymentCheckOrder(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 0)

	// Expired, wrong nonce, bad signature and unfunded: deadline wins.
	auth := h.sign(t, 1, 3, testNow-1)
	auth.Signature = make([]byte, 64)
	requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeExpired)

	// Wrong nonce, bad signature and unfunded: nonce wins.
	auth = h.sign(t, 1, 3, testNow+1)
	auth.Signature = make([]byte, 64)
	requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInvalidNonce)

	// Bad signature and unfunded: signature wins.
	auth = h.sign(t, 1, 0, testNow+1)
	auth.Signature = make([]byte, 64)
	requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInvalidSignature)
}

func TestClaimPaymentOutOfOrderNonces(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 100)
	first := h.sign(t, 1, 0, testNow+60)
	second := h.sign(t, 1, 1, testNow+60)

	requireCode(t, h.engine.ClaimPayment(second), ledgererrors.CodeInvalidNonce)
	require.NoError(t, h.engine.ClaimPayment(first))
	require.NoError(t, h.engine.ClaimPayment(second))
	require.Equal(t, uint64(2), h.nonce(t))

	for i := 0; i < 3; i++ {
		requireCode(t, h.engine.ClaimPayment(first), ledgererrors.CodeInvalidNonce)
		requireCode(t, h.engine.ClaimPayment(second), ledgererrors.CodeInvalidNonce)
	}
	require.Equal(t, uint64(98), h.balance(t, h.account))
}

func TestClaimPaymentRejectsZeroRecipient(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 100)
	auth, err := Sign(h.signer, testDomain, crypto.ZeroAddress, uint256.NewInt(1), 0, testNow+60)
	require.NoError(t, err)

	requireCode(t, h.engine.VerifyPayment(auth), ledgererrors.CodeZeroAddress)
	requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeZeroAddress)
	require.Zero(t, h.nonce(t))
}

func TestClaimPaymentDomainSeparation(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 100)
	foreign := Domain{NetworkID: "casper", ContractID: testDomain.ContractID}
	auth, err := Sign(h.signer, foreign, h.payee, uint256.NewInt(5), 0, testNow+60)
	require.NoError(t, err)

	requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInvalidSignature)
}

func TestVerifyPaymentIsReadOnly(t *testing.T) {
	h := newHarness(t, crypto.SchemeSecp256k1, 10)

	require.NoError(t, h.engine.VerifyPayment(h.sign(t, 10, 0, testNow+5)))
	requireCode(t, h.engine.VerifyPayment(h.sign(t, 11, 0, testNow+5)), ledgererrors.CodeInsufficientBalance)
	requireCode(t, h.engine.VerifyPayment(h.sign(t, 1, 1, testNow+5)), ledgererrors.CodeInvalidNonce)

	require.Zero(t, h.nonce(t))
	require.Equal(t, uint64(10), h.balance(t, h.account))
	require.Empty(t, h.events.Events())
}

func TestClaimPaymentMalformedInput(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 10)
	require.ErrorIs(t, h.engine.ClaimPayment(nil), errNilAuthorization)

	auth := h.sign(t, 1, 0, testNow+5)
	auth.Signer = nil
	requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInvalidSignature)

	for _, typedNil := range []crypto.PublicKey{(*crypto.Ed25519PublicKey)(nil), (*crypto.Secp256k1PublicKey)(nil)} {
		auth = h.sign(t, 1, 0, testNow+5)
		auth.Signer = typedNil
		requireCode(t, h.engine.VerifyPayment(auth), ledgererrors.CodeInvalidSignature)
		requireCode(t, h.engine.ClaimPayment(auth), ledgererrors.CodeInvalidSignature)
	}
	require.Zero(t, h.nonce(t))

	bare := NewEngine(testDomain)
	require.ErrorIs(t, bare.ClaimPayment(h.sign(t, 1, 0, testNow+5)), errNilState)
}

func TestClaimPaymentEventsOwnTheirAmount(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 100)
	auth := h.sign(t, 5, 0, testNow+60)
	require.NoError(t, h.engine.ClaimPayment(auth))

	auth.Amount.SetUint64(99)
	evts := h.events.Events()
	require.Len(t, evts, 2)
	require.Equal(t, uint64(5), evts[0].(events.Transfer).Amount.Uint64())
	require.Equal(t, uint64(5), evts[1].(events.PaymentClaimed).Amount.Uint64())
}

func TestEngineRejectsAmbiguousDomain(t *testing.T) {
	h := newHarness(t, crypto.SchemeEd25519, 100)
	auth := h.sign(t, 5, 0, testNow+60)

	h.engine.domain = Domain{NetworkID: "casper:test", ContractID: testDomain.ContractID}
	err := h.engine.ClaimPayment(auth)
	require.Error(t, err)
	_, coded := ledgererrors.CodeOf(err)
	require.False(t, coded)
	require.Zero(t, h.nonce(t))
	require.Equal(t, uint64(100), h.balance(t, h.account))
}
