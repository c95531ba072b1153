package token

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	ledgererrors "permitledger/core/errors"
	"permitledger/core/events"
	"permitledger/core/state"
	"permitledger/crypto"
)

var (
	errNilState         = errors.New("token engine: state not configured")
	errNotInitialized   = errors.New("token engine: token not initialised")
	errSupplyOverflow   = errors.New("token engine: balance overflow")
	errEmptyTotalSupply = errors.New("token engine: total supply required")
)

type engineState interface {
	Metadata() (*state.TokenMetadata, error)
	SetMetadata(state.TokenMetadata) error
	Balance(addr crypto.Address) (*uint256.Int, error)
	SetBalance(addr crypto.Address, amount *uint256.Int) error
	Allowance(owner, spender crypto.Address) (*uint256.Int, error)
	SetAllowance(owner, spender crypto.Address, amount *uint256.Int) error
}

// Engine implements the fungible token ledger: balances, allowances and the
// transfer/approve/transfer_from family. It is the only writer of balances
// and allowances.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a token engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// Initialize writes the token metadata and credits the whole supply to
// deployer, emitting a mint supply event. It can succeed only once per
// ledger.
func (e *Engine) Initialize(deployer crypto.Address, meta state.TokenMetadata) error {
	if err := e.ready(); err != nil {
		return err
	}
	if deployer.IsZero() {
		return fmt.Errorf("token: deployer: %w", ledgererrors.ErrZeroAddress)
	}
	if meta.TotalSupply == nil {
		return errEmptyTotalSupply
	}
	if err := e.state.SetMetadata(meta); err != nil {
		return err
	}
	if err := e.state.SetBalance(deployer, meta.TotalSupply.Clone()); err != nil {
		return err
	}
	e.emit(events.TokenSupply{
		Token:   meta.Symbol,
		Account: deployer,
		Total:   meta.TotalSupply.Clone(),
		Delta:   meta.TotalSupply.Clone(),
		Reason:  events.SupplyReasonMint,
	})
	return nil
}

// Transfer moves amount from caller to recipient.
func (e *Engine) Transfer(caller, recipient crypto.Address, amount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.move(caller, recipient, amount); err != nil {
		return err
	}
	e.emit(events.Transfer{From: caller, To: recipient, Amount: amountOrZero(amount).Clone()})
	return nil
}

// Approve overwrites the allowance caller grants to spender.
func (e *Engine) Approve(caller, spender crypto.Address, amount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	value := amountOrZero(amount)
	if err := e.state.SetAllowance(caller, spender, value); err != nil {
		return err
	}
	e.emit(events.Approval{Owner: caller, Spender: spender, Amount: value.Clone()})
	return nil
}

// IncreaseAllowance adds delta to the current allowance.
func (e *Engine) IncreaseAllowance(caller, spender crypto.Address, delta *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	current, err := e.state.Allowance(caller, spender)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(current, amountOrZero(delta))
	if overflow {
		next.SetAllOne()
	}
	if err := e.state.SetAllowance(caller, spender, next); err != nil {
		return err
	}
	e.emit(events.Approval{Owner: caller, Spender: spender, Amount: next})
	return nil
}

// DecreaseAllowance subtracts delta from the current allowance, stopping at
// zero.
func (e *Engine) DecreaseAllowance(caller, spender crypto.Address, delta *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	current, err := e.state.Allowance(caller, spender)
	if err != nil {
		return err
	}
	d := amountOrZero(delta)
	next := new(uint256.Int)
	if current.Gt(d) {
		next.Sub(current, d)
	}
	if err := e.state.SetAllowance(caller, spender, next); err != nil {
		return err
	}
	e.emit(events.Approval{Owner: caller, Spender: spender, Amount: next})
	return nil
}

// TransferFrom spends caller's allowance over owner to move amount to
// recipient. The allowance is checked before the balance.
func (e *Engine) TransferFrom(caller, owner, recipient crypto.Address, amount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	value := amountOrZero(amount)
	allowance, err := e.state.Allowance(owner, caller)
	if err != nil {
		return err
	}
	if allowance.Lt(value) {
		return fmt.Errorf("token: allowance %s < %s: %w", allowance.Dec(), value.Dec(), ledgererrors.ErrInsufficientAllowance)
	}
	if err := e.move(owner, recipient, value); err != nil {
		return err
	}
	if err := e.state.SetAllowance(owner, caller, new(uint256.Int).Sub(allowance, value)); err != nil {
		return err
	}
	e.emit(events.Transfer{From: owner, To: recipient, Amount: value.Clone()})
	return nil
}

// move debits from and credits to. Balance is checked before the recipient
// so that shortfalls are reported as such even for the null account.
func (e *Engine) move(from, to crypto.Address, amount *uint256.Int) error {
	value := amountOrZero(amount)
	fromBal, err := e.state.Balance(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(value) {
		return fmt.Errorf("token: balance %s < %s: %w", fromBal.Dec(), value.Dec(), ledgererrors.ErrInsufficientBalance)
	}
	if to.IsZero() {
		return fmt.Errorf("token: recipient: %w", ledgererrors.ErrZeroAddress)
	}
	if from == to {
		return nil
	}
	toBal, err := e.state.Balance(to)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(toBal, value)
	if overflow {
		return errSupplyOverflow
	}
	if err := e.state.SetBalance(from, new(uint256.Int).Sub(fromBal, value)); err != nil {
		return err
	}
	return e.state.SetBalance(to, credited)
}

// BalanceOf returns the balance of addr; unknown accounts hold zero.
func (e *Engine) BalanceOf(addr crypto.Address) (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.Balance(addr)
}

// Allowance returns the amount spender may still move out of owner.
func (e *Engine) Allowance(owner, spender crypto.Address) (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.Allowance(owner, spender)
}

// Metadata returns the immutable token metadata.
func (e *Engine) Metadata() (*state.TokenMetadata, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	meta, err := e.state.Metadata()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errNotInitialized
	}
	return meta, nil
}

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
