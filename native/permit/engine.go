package permit

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	ledgererrors "permitledger/core/errors"
	"permitledger/core/events"
	"permitledger/crypto"
)

var (
	errNilState         = errors.New("permit engine: state not configured")
	errNilLedger        = errors.New("permit engine: token ledger not configured")
	errNilAuthorization = errors.New("permit engine: authorization required")
)

type tokenLedger interface {
	Transfer(caller, recipient crypto.Address, amount *uint256.Int) error
	BalanceOf(addr crypto.Address) (*uint256.Int, error)
}

// Engine settles signed payment authorizations against the token ledger.
type Engine struct {
	domain   Domain
	nonces   *NonceGuard
	ledger   tokenLedger
	emitter  events.Emitter
	nowFn    func() uint64
	verifyFn func(message []byte, pub crypto.PublicKey, signature []byte) bool
}

// NewEngine creates a settlement engine for domain with a no-op emitter and
// the wall clock as time source.
func NewEngine(domain Domain) *Engine {
	return &Engine{
		domain:   domain,
		emitter:  events.NoopEmitter{},
		nowFn:    func() uint64 { return uint64(time.Now().Unix()) },
		verifyFn: crypto.Verify,
	}
}

// Domain returns the network and contract the engine settles for.
func (e *Engine) Domain() Domain { return e.domain }

// SetState configures the nonce storage used by the engine.
func (e *Engine) SetState(state nonceState) { e.nonces = NewNonceGuard(state) }

// SetLedger configures the token ledger debited by settlements.
func (e *Engine) SetLedger(ledger tokenLedger) { e.ledger = ledger }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deadline checks. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// NonceOf returns the nonce the next authorization from addr must carry.
func (e *Engine) NonceOf(addr crypto.Address) (uint64, error) {
	return e.nonces.NonceOf(addr)
}

// ClaimPayment settles auth. Checks run cheapest first: deadline, nonce,
// signature, then the ledger transfer. The nonce advances and
// PaymentClaimed is emitted only after all of them pass. On failure the
// caller must discard every staged write.
func (e *Engine) ClaimPayment(auth *Authorization) error {
	signer, err := e.validate(auth)
	if err != nil {
		return err
	}
	if err := e.ledger.Transfer(signer, auth.Recipient, auth.Amount); err != nil {
		return err
	}
	if err := e.nonces.Advance(signer); err != nil {
		return err
	}
	e.emitter.Emit(events.PaymentClaimed{
		User:      signer,
		Recipient: auth.Recipient,
		Amount:    amountOf(auth).Clone(),
		Nonce:     auth.Nonce,
	})
	return nil
}

// VerifyPayment runs every ClaimPayment check without mutating state. It
// lets a facilitator reject an authorization before paying to submit it.
func (e *Engine) VerifyPayment(auth *Authorization) error {
	signer, err := e.validate(auth)
	if err != nil {
		return err
	}
	balance, err := e.ledger.BalanceOf(signer)
	if err != nil {
		return err
	}
	amount := amountOf(auth)
	if balance.Lt(amount) {
		return fmt.Errorf("permit: balance %s < %s: %w", balance.Dec(), amount.Dec(), ledgererrors.ErrInsufficientBalance)
	}
	if auth.Recipient.IsZero() {
		return fmt.Errorf("permit: recipient: %w", ledgererrors.ErrZeroAddress)
	}
	return nil
}

// validate runs the deadline, nonce and signature checks and returns the
// paying account.
func (e *Engine) validate(auth *Authorization) (crypto.Address, error) {
	if e.nonces == nil {
		return crypto.ZeroAddress, errNilState
	}
	if e.ledger == nil {
		return crypto.ZeroAddress, errNilLedger
	}
	if auth == nil {
		return crypto.ZeroAddress, errNilAuthorization
	}
	if err := e.domain.Validate(); err != nil {
		return crypto.ZeroAddress, err
	}
	if auth.Signer == nil || auth.Signer.Address().IsZero() {
		return crypto.ZeroAddress, fmt.Errorf("permit: signer key missing: %w", ledgererrors.ErrInvalidSignature)
	}

	now := e.nowFn()
	if auth.Deadline < now {
		return crypto.ZeroAddress, fmt.Errorf("permit: deadline %d before %d: %w", auth.Deadline, now, ledgererrors.ErrExpired)
	}

	signer := auth.Signer.Address()
	ok, err := e.nonces.Check(signer, auth.Nonce)
	if err != nil {
		return crypto.ZeroAddress, err
	}
	if !ok {
		return crypto.ZeroAddress, fmt.Errorf("permit: nonce %d is not current for %s: %w", auth.Nonce, signer, ledgererrors.ErrInvalidNonce)
	}

	message := e.domain.Message(auth.Recipient, amountOf(auth), auth.Nonce, auth.Deadline)
	if !e.verifyFn(message, auth.Signer, auth.Signature) {
		return crypto.ZeroAddress, fmt.Errorf("permit: %w", ledgererrors.ErrInvalidSignature)
	}
	return signer, nil
}

func amountOf(auth *Authorization) *uint256.Int {
	if auth.Amount == nil {
		return new(uint256.Int)
	}
	return auth.Amount
}
