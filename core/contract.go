package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgererrors "permitledger/core/errors"
	"permitledger/core/events"
	"permitledger/core/state"
	"permitledger/core/types"
	"permitledger/crypto"
	"permitledger/native/permit"
	"permitledger/native/token"
	"permitledger/observability"
	"permitledger/observability/logging"
	"permitledger/storage"
)

// Contract hosts one token instance. It serialises every call behind a single
// mutex and runs each mutating call inside one staged changeset: the call's
// writes and events reach storage in one atomic batch, or not at all.
type Contract struct {
	mu         sync.Mutex
	db         storage.Database
	domain     permit.Domain
	nowFn      func() uint64
	logger     *slog.Logger
	metrics    *observability.LedgerMetrics
	tracer     trace.Tracer
	subscriber events.Emitter
}

const tracerName = "permitledger/core"

// Option customises a Contract.
type Option func(*Contract)

// WithLogger sets the logger used for call outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Contract) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the block-time source used for deadline checks.
func WithClock(now func() uint64) Option {
	return func(c *Contract) {
		if now != nil {
			c.nowFn = now
		}
	}
}

// WithMetrics records call outcomes in m.
func WithMetrics(m *observability.LedgerMetrics) Option {
	return func(c *Contract) { c.metrics = m }
}

// WithTracerProvider traces every mutating call through tp instead of the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Contract) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithSubscriber receives every event after its call has committed.
func WithSubscriber(sub events.Emitter) Option {
	return func(c *Contract) {
		if sub != nil {
			c.subscriber = sub
		}
	}
}

// NewContract opens the contract stored in db for the given domain.
func NewContract(db storage.Database, domain permit.Domain, opts ...Option) *Contract {
	c := &Contract{
		db:         db,
		domain:     domain,
		nowFn:      func() uint64 { return uint64(time.Now().Unix()) },
		logger:     logging.Discard(),
		tracer:     otel.Tracer(tracerName),
		subscriber: events.NoopEmitter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Domain returns the network and contract identifiers permits are bound to.
func (c *Contract) Domain() permit.Domain { return c.domain }

type txn struct {
	changes *state.Changeset
	state   *state.Manager
	token   *token.Engine
	permit  *permit.Engine
	events  *events.Buffer
}

func (c *Contract) begin() *txn {
	changes := state.NewChangeset(c.db)
	mgr := state.NewManager(changes)
	buf := &events.Buffer{}

	tokenEngine := token.NewEngine()
	tokenEngine.SetState(mgr)
	tokenEngine.SetEmitter(buf)

	permitEngine := permit.NewEngine(c.domain)
	permitEngine.SetState(mgr)
	permitEngine.SetLedger(tokenEngine)
	permitEngine.SetEmitter(buf)
	permitEngine.SetNowFunc(c.nowFn)

	return &txn{changes: changes, state: mgr, token: tokenEngine, permit: permitEngine, events: buf}
}

// execute runs fn as one atomic call. Buffered events are appended to the
// persisted log inside the same changeset and published only after commit.
func (c *Contract) execute(op string, fn func(*txn) error, attrs ...slog.Attr) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, span := c.tracer.Start(context.Background(), "contract."+op,
		trace.WithAttributes(attribute.String("ledger.operation", op)))
	defer span.End()

	start := time.Now()
	tx := c.begin()
	err := fn(tx)
	if err == nil {
		err = c.commit(tx)
	} else {
		tx.changes.Discard()
	}
	c.metrics.Observe(op, err, time.Since(start))
	c.logOutcome(op, err, attrs)
	if err != nil {
		if code, ok := ledgererrors.CodeOf(err); ok {
			span.SetAttributes(attribute.String("ledger.code", code.String()))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("ledger.events", len(tx.events.Events())))
	for _, evt := range tx.events.Events() {
		observability.Events().Record(evt.EventType())
		c.subscriber.Emit(evt)
	}
	return nil
}

func (c *Contract) commit(tx *txn) error {
	for _, evt := range tx.events.Events() {
		if _, err := tx.state.AppendEvent(evt.Event()); err != nil {
			tx.changes.Discard()
			return err
		}
	}
	return tx.changes.Commit()
}

// query runs fn against a throwaway changeset. Nothing fn writes is kept.
func (c *Contract) query(fn func(*txn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx := c.begin()
	defer tx.changes.Discard()
	return fn(tx)
}

func (c *Contract) logOutcome(op string, err error, attrs []slog.Attr) {
	args := make([]any, 0, len(attrs)+2)
	args = append(args, slog.String("operation", op))
	for _, a := range attrs {
		args = append(args, a)
	}
	switch code, ok := ledgererrors.CodeOf(err); {
	case err == nil:
		c.logger.Info("contract call committed", args...)
	case ok:
		args = append(args, slog.String("code", code.String()), slog.Any("error", err))
		c.logger.Warn("contract call rejected", args...)
	default:
		args = append(args, slog.Any("error", err))
		c.logger.Error("contract call failed", args...)
	}
}

// Init writes the token metadata and credits the full supply to deployer.
func (c *Contract) Init(deployer crypto.Address, meta state.TokenMetadata) error {
	return c.execute("init", func(tx *txn) error {
		return tx.token.Initialize(deployer, meta)
	}, slog.String("account", deployer.String()))
}

// Metadata returns the immutable token metadata.
func (c *Contract) Metadata() (*state.TokenMetadata, error) {
	var meta *state.TokenMetadata
	err := c.query(func(tx *txn) error {
		var err error
		meta, err = tx.token.Metadata()
		return err
	})
	return meta, err
}

// Name returns the token name.
func (c *Contract) Name() (string, error) {
	meta, err := c.Metadata()
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}

// Symbol returns the token symbol.
func (c *Contract) Symbol() (string, error) {
	meta, err := c.Metadata()
	if err != nil {
		return "", err
	}
	return meta.Symbol, nil
}

// Decimals returns the token's display precision.
func (c *Contract) Decimals() (uint8, error) {
	meta, err := c.Metadata()
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// TotalSupply returns the fixed token supply.
func (c *Contract) TotalSupply() (*uint256.Int, error) {
	meta, err := c.Metadata()
	if err != nil {
		return nil, err
	}
	return meta.TotalSupply, nil
}

// BalanceOf returns the balance of addr.
func (c *Contract) BalanceOf(addr crypto.Address) (*uint256.Int, error) {
	var bal *uint256.Int
	err := c.query(func(tx *txn) error {
		var err error
		bal, err = tx.token.BalanceOf(addr)
		return err
	})
	return bal, err
}

// Allowance returns the amount spender may move out of owner.
func (c *Contract) Allowance(owner, spender crypto.Address) (*uint256.Int, error) {
	var allowance *uint256.Int
	err := c.query(func(tx *txn) error {
		var err error
		allowance, err = tx.token.Allowance(owner, spender)
		return err
	})
	return allowance, err
}

// NonceOf returns the nonce the next permit from addr must carry.
func (c *Contract) NonceOf(addr crypto.Address) (uint64, error) {
	var nonce uint64
	err := c.query(func(tx *txn) error {
		var err error
		nonce, err = tx.permit.NonceOf(addr)
		return err
	})
	return nonce, err
}

// Events returns up to limit committed events starting at sequence from.
// A non-positive limit returns every remaining event.
func (c *Contract) Events(from uint64, limit int) ([]*types.Event, error) {
	var out []*types.Event
	err := c.query(func(tx *txn) error {
		var err error
		out, err = tx.state.Events(from, limit)
		return err
	})
	return out, err
}

// Holding is one account's committed balance.
type Holding struct {
	Account crypto.Address
	Balance *uint256.Int
}

// Holders lists every account with a non-zero committed balance in address
// order.
func (c *Contract) Holders() ([]Holding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Holding, 0)
	err := c.db.ForEach(state.BalancePrefix(), func(key, value []byte) error {
		addr, bal, err := state.DecodeBalance(key, value)
		if err != nil {
			return err
		}
		if !bal.IsZero() {
			out = append(out, Holding{Account: addr, Balance: bal})
		}
		return nil
	})
	return out, err
}

// Transfer moves amount from caller to recipient.
func (c *Contract) Transfer(caller, recipient crypto.Address, amount *uint256.Int) error {
	return c.execute("transfer", func(tx *txn) error {
		return tx.token.Transfer(caller, recipient, amount)
	}, slog.String("account", caller.String()), slog.String("recipient", recipient.String()))
}

// Approve sets the allowance caller grants spender.
func (c *Contract) Approve(caller, spender crypto.Address, amount *uint256.Int) error {
	return c.execute("approve", func(tx *txn) error {
		return tx.token.Approve(caller, spender, amount)
	}, slog.String("account", caller.String()))
}

// IncreaseAllowance raises the allowance caller grants spender by delta.
func (c *Contract) IncreaseAllowance(caller, spender crypto.Address, delta *uint256.Int) error {
	return c.execute("increase_allowance", func(tx *txn) error {
		return tx.token.IncreaseAllowance(caller, spender, delta)
	}, slog.String("account", caller.String()))
}

// DecreaseAllowance lowers the allowance caller grants spender by delta.
func (c *Contract) DecreaseAllowance(caller, spender crypto.Address, delta *uint256.Int) error {
	return c.execute("decrease_allowance", func(tx *txn) error {
		return tx.token.DecreaseAllowance(caller, spender, delta)
	}, slog.String("account", caller.String()))
}

// TransferFrom moves amount from owner to recipient using caller's allowance.
func (c *Contract) TransferFrom(caller, owner, recipient crypto.Address, amount *uint256.Int) error {
	return c.execute("transfer_from", func(tx *txn) error {
		return tx.token.TransferFrom(caller, owner, recipient, amount)
	}, slog.String("account", owner.String()), slog.String("recipient", recipient.String()))
}

// ClaimPayment settles a signed payment authorization. Any rejection leaves
// balances, nonces and the event log exactly as they were.
func (c *Contract) ClaimPayment(auth *permit.Authorization) error {
	if auth == nil {
		return errors.New("core: authorization required")
	}
	return c.execute("claim_payment", func(tx *txn) error {
		return tx.permit.ClaimPayment(auth)
	}, authAttrs(auth)...)
}

// VerifyPayment reports whether ClaimPayment(auth) would currently succeed.
func (c *Contract) VerifyPayment(auth *permit.Authorization) error {
	return c.query(func(tx *txn) error {
		return tx.permit.VerifyPayment(auth)
	})
}

func authAttrs(auth *permit.Authorization) []slog.Attr {
	amount := "0"
	if auth.Amount != nil {
		amount = auth.Amount.Dec()
	}
	return []slog.Attr{
		slog.String("account", auth.Account().String()),
		slog.String("recipient", auth.Recipient.String()),
		slog.String("amount", amount),
		slog.Uint64("nonce", auth.Nonce),
		slog.Uint64("deadline", auth.Deadline),
		logging.MaskBytes("signature", auth.Signature),
	}
}
