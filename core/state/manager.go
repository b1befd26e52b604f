package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"jobescrow/core/types"
	"jobescrow/native/custody"
	"jobescrow/storage"
)

// Manager persists custody instances, the append-only creation index and
// participant accounts in the key-value store. Records are stored as RLP
// shadow structs under keccak-hashed prefix keys so layout changes never leak
// into the domain types.
type Manager struct {
	db storage.Database
}

// NewManager wraps the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func custodyStorageKey(id [32]byte) []byte {
	buf := make([]byte, len(custodyRecordPrefix)+len(id))
	copy(buf, custodyRecordPrefix)
	copy(buf[len(custodyRecordPrefix):], id[:])
	return ethcrypto.Keccak256(buf)
}

func accountStorageKey(addr []byte) []byte {
	buf := make([]byte, len(accountRecordPrefix)+len(addr))
	copy(buf, accountRecordPrefix)
	copy(buf[len(accountRecordPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

func custodyIndexKey() []byte {
	return ethcrypto.Keccak256(custodyIndexKeyBytes)
}

// VaultAddress returns the module account that holds funded balances. It is
// derived from a fixed seed so every deployment agrees on it.
func (m *Manager) VaultAddress() [20]byte {
	hash := ethcrypto.Keccak256(vaultSeed)
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

type storedInstance struct {
	ID              [32]byte
	Variant         uint8
	Realtor         [20]byte
	Contractor      [20]byte
	Amount          *big.Int
	Balance         *big.Int
	Status          uint8
	CreatedAt       *big.Int
	DisputeOpenedAt *big.Int
	RealtorPay      bool
	ContractorPay   bool
	RealtorRefund   bool
	ContractorRef   bool
	WorkLocation    string
	Description     string
}

func newStoredInstance(in *custody.Instance) *storedInstance {
	amount := big.NewInt(0)
	if in.Amount != nil {
		amount = new(big.Int).Set(in.Amount)
	}
	balance := big.NewInt(0)
	if in.Balance != nil {
		balance = new(big.Int).Set(in.Balance)
	}
	return &storedInstance{
		ID:              in.ID,
		Variant:         uint8(in.Variant),
		Realtor:         in.Realtor,
		Contractor:      in.Contractor,
		Amount:          amount,
		Balance:         balance,
		Status:          uint8(in.Status),
		CreatedAt:       big.NewInt(in.CreatedAt),
		DisputeOpenedAt: big.NewInt(in.DisputeOpenedAt),
		RealtorPay:      in.Votes.RealtorAgreesPay,
		ContractorPay:   in.Votes.ContractorAgreesPay,
		RealtorRefund:   in.Votes.RealtorAgreesRefund,
		ContractorRef:   in.Votes.ContractorAgreesRefund,
		WorkLocation:    in.Meta.WorkLocation,
		Description:     in.Meta.Description,
	}
}

func (s *storedInstance) toInstance() (*custody.Instance, error) {
	if s == nil {
		return nil, fmt.Errorf("custody state: nil storage record")
	}
	out := &custody.Instance{
		ID:         s.ID,
		Variant:    custody.Variant(s.Variant),
		Realtor:    s.Realtor,
		Contractor: s.Contractor,
		Amount:     big.NewInt(0),
		Balance:    big.NewInt(0),
		Status:     custody.Status(s.Status),
		Votes: custody.VoteSet{
			RealtorAgreesPay:       s.RealtorPay,
			ContractorAgreesPay:    s.ContractorPay,
			RealtorAgreesRefund:    s.RealtorRefund,
			ContractorAgreesRefund: s.ContractorRef,
		},
		Meta: custody.Metadata{WorkLocation: s.WorkLocation, Description: s.Description},
	}
	if s.Amount != nil {
		out.Amount = new(big.Int).Set(s.Amount)
	}
	if s.Balance != nil {
		out.Balance = new(big.Int).Set(s.Balance)
	}
	if s.CreatedAt != nil {
		out.CreatedAt = s.CreatedAt.Int64()
	}
	if s.DisputeOpenedAt != nil {
		out.DisputeOpenedAt = s.DisputeOpenedAt.Int64()
	}
	if !out.Status.Valid() {
		return nil, fmt.Errorf("custody state: invalid status %d", s.Status)
	}
	if !out.Variant.Valid() {
		return nil, fmt.Errorf("custody state: invalid variant %d", s.Variant)
	}
	return out, nil
}

// CustodyPut validates and persists a custody instance.
func (m *Manager) CustodyPut(in *custody.Instance) error {
	sanitized, err := custody.SanitizeInstance(in)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(newStoredInstance(sanitized))
	if err != nil {
		return fmt.Errorf("custody state: encode instance: %w", err)
	}
	return m.db.Put(custodyStorageKey(sanitized.ID), encoded)
}

// CustodyGet loads a custody instance by identifier. The returned record is a
// fresh decode, never an alias of previously returned memory.
func (m *Manager) CustodyGet(id [32]byte) (*custody.Instance, bool) {
	raw, err := m.db.Get(custodyStorageKey(id))
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var stored storedInstance
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false
	}
	inst, err := stored.toInstance()
	if err != nil {
		return nil, false
	}
	return inst, true
}

type storedIndex struct {
	IDs [][32]byte
}

func (m *Manager) readIndex() (*storedIndex, error) {
	raw, err := m.db.Get(custodyIndexKey())
	if err != nil || len(raw) == 0 {
		return &storedIndex{}, nil
	}
	var idx storedIndex
	if err := rlp.DecodeBytes(raw, &idx); err != nil {
		return nil, fmt.Errorf("custody state: decode index: %w", err)
	}
	return &idx, nil
}

// RegistryAppend records a new identifier at the end of the creation index.
func (m *Manager) RegistryAppend(id [32]byte) error {
	idx, err := m.readIndex()
	if err != nil {
		return err
	}
	idx.IDs = append(idx.IDs, id)
	encoded, err := rlp.EncodeToBytes(idx)
	if err != nil {
		return fmt.Errorf("custody state: encode index: %w", err)
	}
	return m.db.Put(custodyIndexKey(), encoded)
}

// RegistryList returns every recorded identifier in insertion order.
func (m *Manager) RegistryList() ([][32]byte, error) {
	idx, err := m.readIndex()
	if err != nil {
		return nil, err
	}
	out := make([][32]byte, len(idx.IDs))
	copy(out, idx.IDs)
	return out, nil
}

// RegistryCount returns the number of instances created so far.
func (m *Manager) RegistryCount() (uint64, error) {
	idx, err := m.readIndex()
	if err != nil {
		return 0, err
	}
	return uint64(len(idx.IDs)), nil
}

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads the account stored under addr, returning a zero-balance
// account when none exists yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	raw, err := m.db.Get(accountStorageKey(addr))
	if err != nil || len(raw) == 0 {
		return types.NewAccount(), nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("custody state: decode account: %w", err)
	}
	acc := &types.Account{Nonce: stored.Nonce, Balance: big.NewInt(0)}
	if stored.Balance != nil {
		acc.Balance = new(big.Int).Set(stored.Balance)
	}
	return acc, nil
}

// PutAccount persists the account under addr. Negative balances are rejected
// so a bookkeeping bug can never mint debt.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("custody state: nil account")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		balance = new(big.Int).Set(account.Balance)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("custody state: negative account balance")
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return fmt.Errorf("custody state: encode account: %w", err)
	}
	return m.db.Put(accountStorageKey(addr), encoded)
}
