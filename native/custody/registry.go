package custody

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"jobescrow/core/events"
)

// registryState is the slice of ledger state the registry needs: instance
// records plus the append-only creation index.
type registryState interface {
	CustodyPut(*Instance) error
	CustodyGet(id [32]byte) (*Instance, bool)
	RegistryAppend(id [32]byte) error
	RegistryList() ([][32]byte, error)
	RegistryCount() (uint64, error)
}

// Registry instantiates custody instances and tracks them in creation order.
// The index only ever grows; identifiers are derived from the realtor and the
// creation sequence so they are deterministic and collision-free.
type Registry struct {
	state   registryState
	emitter events.Emitter
	nowFn   func() int64
}

// NewRegistry creates a registry with a no-op emitter and wall-clock time.
func NewRegistry(state registryState) *Registry {
	return &Registry{
		state:   state,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source, for deterministic tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) emit(evt events.Event) {
	if r == nil || r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(evt)
}

// InstanceID derives the identifier for the instance created by realtor at
// the given registry sequence number.
func InstanceID(realtor [20]byte, sequence uint64) [32]byte {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], sequence)
	return ethcrypto.Keccak256Hash(realtor[:], seq[:])
}

// CreateFixedPair instantiates custody with both roles bound at creation.
func (r *Registry) CreateFixedPair(realtor, contractor [20]byte, amount *big.Int, meta Metadata) (*Instance, error) {
	if contractor == ([20]byte{}) {
		return nil, fmt.Errorf("%w: contractor address required", ErrUnauthorized)
	}
	if contractor == realtor {
		return nil, fmt.Errorf("%w: realtor cannot be its own contractor", ErrUnauthorized)
	}
	return r.create(VariantFixedPair, realtor, contractor, amount, meta)
}

// CreateOpenJob instantiates custody with the contractor slot left open for a
// later acceptance.
func (r *Registry) CreateOpenJob(realtor [20]byte, amount *big.Int, meta Metadata) (*Instance, error) {
	return r.create(VariantOpenJob, realtor, [20]byte{}, amount, meta)
}

func (r *Registry) create(variant Variant, realtor, contractor [20]byte, amount *big.Int, meta Metadata) (*Instance, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if realtor == ([20]byte{}) {
		return nil, fmt.Errorf("%w: realtor address required", ErrUnauthorized)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrWrongValue)
	}
	sequence, err := r.state.RegistryCount()
	if err != nil {
		return nil, err
	}
	id := InstanceID(realtor, sequence)
	if _, exists := r.state.CustodyGet(id); exists {
		return nil, fmt.Errorf("custody registry: identifier collision at sequence %d", sequence)
	}
	inst := &Instance{
		ID:         id,
		Variant:    variant,
		Realtor:    realtor,
		Contractor: contractor,
		Amount:     new(big.Int).Set(amount),
		Balance:    big.NewInt(0),
		Status:     StatusCreated,
		CreatedAt:  r.nowFn(),
		Meta:       meta,
	}
	sanitized, err := SanitizeInstance(inst)
	if err != nil {
		return nil, err
	}
	if err := r.state.CustodyPut(sanitized); err != nil {
		return nil, err
	}
	if err := r.state.RegistryAppend(id); err != nil {
		return nil, err
	}
	r.emit(CreatedEvent{
		ID:         sanitized.ID,
		Variant:    sanitized.Variant,
		Realtor:    sanitized.Realtor,
		Contractor: sanitized.Contractor,
		Amount:     new(big.Int).Set(sanitized.Amount),
		CreatedAt:  sanitized.CreatedAt,
	})
	return sanitized.Clone(), nil
}

// List returns every instance identifier in creation order.
func (r *Registry) List() ([][32]byte, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	return r.state.RegistryList()
}

// Get resolves an identifier to a copy of its instance.
func (r *Registry) Get(id [32]byte) (*Instance, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	inst, ok := r.state.CustodyGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return inst.Clone(), nil
}
