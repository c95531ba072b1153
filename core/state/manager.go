package state

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"permitledger/core/types"
	"permitledger/crypto"
)

// ErrAlreadyInitialized is returned when token metadata is written twice.
var ErrAlreadyInitialized = errors.New("state: token metadata already initialised")

// KV is the key-value surface the manager reads and writes. A Changeset is the
// usual implementation; absent keys read back as a nil slice.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
}

// Manager provides typed access to balances, allowances, nonces, token
// metadata and the event log stored in a KV.
type Manager struct {
	kv KV
}

// NewManager creates a state manager operating on the provided KV.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

// TokenMetadata is written once at initialisation and never mutated.
type TokenMetadata struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *uint256.Int
}

type metadataRecord struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

type eventRecord struct {
	Type   string
	Keys   []string
	Values []string
}

// SetMetadata stores the token metadata. It fails if metadata already exists.
func (m *Manager) SetMetadata(meta TokenMetadata) error {
	if strings.TrimSpace(meta.Name) == "" {
		return fmt.Errorf("state: token name must not be empty")
	}
	if strings.TrimSpace(meta.Symbol) == "" {
		return fmt.Errorf("state: token symbol must not be empty")
	}
	existing, err := m.Metadata()
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyInitialized
	}
	supply := meta.TotalSupply
	if supply == nil {
		supply = new(uint256.Int)
	}
	encoded, err := rlp.EncodeToBytes(&metadataRecord{
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		TotalSupply: supply.ToBig(),
	})
	if err != nil {
		return err
	}
	return m.kv.Put(MetadataKey(), encoded)
}

// Metadata returns the token metadata or nil before initialisation.
func (m *Manager) Metadata() (*TokenMetadata, error) {
	data, err := m.kv.Get(MetadataKey())
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var rec metadataRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, fmt.Errorf("state: decode metadata: %w", err)
	}
	supply, err := toUint256(rec.TotalSupply)
	if err != nil {
		return nil, err
	}
	return &TokenMetadata{
		Name:        rec.Name,
		Symbol:      rec.Symbol,
		Decimals:    rec.Decimals,
		TotalSupply: supply,
	}, nil
}

// Balance returns the balance of addr. Unknown accounts hold zero.
func (m *Manager) Balance(addr crypto.Address) (*uint256.Int, error) {
	return m.loadAmount(BalanceKey(addr))
}

// SetBalance stores the balance of addr.
func (m *Manager) SetBalance(addr crypto.Address, amount *uint256.Int) error {
	return m.storeAmount(BalanceKey(addr), amount)
}

// Allowance returns how much spender may move out of owner's balance.
func (m *Manager) Allowance(owner, spender crypto.Address) (*uint256.Int, error) {
	return m.loadAmount(AllowanceKey(owner, spender))
}

// SetAllowance overwrites the owner→spender allowance.
func (m *Manager) SetAllowance(owner, spender crypto.Address, amount *uint256.Int) error {
	return m.storeAmount(AllowanceKey(owner, spender), amount)
}

// Nonce returns the next permit nonce expected from addr.
func (m *Manager) Nonce(addr crypto.Address) (uint64, error) {
	data, err := m.kv.Get(NonceKey(addr))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var nonce uint64
	if err := rlp.DecodeBytes(data, &nonce); err != nil {
		return 0, fmt.Errorf("state: decode nonce: %w", err)
	}
	return nonce, nil
}

// SetNonce stores the permit nonce of addr.
func (m *Manager) SetNonce(addr crypto.Address, nonce uint64) error {
	encoded, err := rlp.EncodeToBytes(nonce)
	if err != nil {
		return err
	}
	return m.kv.Put(NonceKey(addr), encoded)
}

// EventCount returns how many events have been appended to the log.
func (m *Manager) EventCount() (uint64, error) {
	data, err := m.kv.Get(eventCountKeyBytes)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var count uint64
	if err := rlp.DecodeBytes(data, &count); err != nil {
		return 0, fmt.Errorf("state: decode event count: %w", err)
	}
	return count, nil
}

// AppendEvent adds evt to the log and returns its sequence number.
func (m *Manager) AppendEvent(evt *types.Event) (uint64, error) {
	if evt == nil {
		return 0, fmt.Errorf("state: nil event")
	}
	seq, err := m.EventCount()
	if err != nil {
		return 0, err
	}
	rec := eventRecord{Type: evt.Type}
	for _, k := range evt.SortedKeys() {
		rec.Keys = append(rec.Keys, k)
		rec.Values = append(rec.Values, evt.Attributes[k])
	}
	encoded, err := rlp.EncodeToBytes(&rec)
	if err != nil {
		return 0, err
	}
	if err := m.kv.Put(EventKey(seq), encoded); err != nil {
		return 0, err
	}
	count, err := rlp.EncodeToBytes(seq + 1)
	if err != nil {
		return 0, err
	}
	if err := m.kv.Put(eventCountKeyBytes, count); err != nil {
		return 0, err
	}
	return seq, nil
}

// Events returns up to limit events starting at sequence number from.
func (m *Manager) Events(from uint64, limit int) ([]*types.Event, error) {
	count, err := m.EventCount()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Event, 0)
	for seq := from; seq < count && (limit <= 0 || len(out) < limit); seq++ {
		data, err := m.kv.Get(EventKey(seq))
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("state: event %d missing", seq)
		}
		var rec eventRecord
		if err := rlp.DecodeBytes(data, &rec); err != nil {
			return nil, fmt.Errorf("state: decode event %d: %w", seq, err)
		}
		if len(rec.Keys) != len(rec.Values) {
			return nil, fmt.Errorf("state: event %d corrupt", seq)
		}
		attrs := make(map[string]string, len(rec.Keys))
		for i, k := range rec.Keys {
			attrs[k] = rec.Values[i]
		}
		out = append(out, &types.Event{Seq: seq, Type: rec.Type, Attributes: attrs})
	}
	return out, nil
}

// DecodeBalance parses one raw balance slot as read from the backing store.
func DecodeBalance(key, value []byte) (crypto.Address, *uint256.Int, error) {
	if !strings.HasPrefix(string(key), string(balancePrefix)) {
		return crypto.ZeroAddress, nil, fmt.Errorf("state: %x is not a balance key", key)
	}
	addr, err := crypto.BytesToAddress(key[len(balancePrefix):])
	if err != nil {
		return crypto.ZeroAddress, nil, fmt.Errorf("state: balance key: %w", err)
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(value, amount); err != nil {
		return addr, nil, fmt.Errorf("state: decode balance of %s: %w", addr, err)
	}
	bal, err := toUint256(amount)
	return addr, bal, err
}

func (m *Manager) loadAmount(key []byte) (*uint256.Int, error) {
	data, err := m.kv.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return new(uint256.Int), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, fmt.Errorf("state: decode amount: %w", err)
	}
	return toUint256(amount)
}

func (m *Manager) storeAmount(key []byte, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	encoded, err := rlp.EncodeToBytes(amount.ToBig())
	if err != nil {
		return err
	}
	return m.kv.Put(key, encoded)
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("state: amount exceeds 256 bits")
	}
	return out, nil
}
