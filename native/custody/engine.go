package custody

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"jobescrow/core/events"
	"jobescrow/core/types"
)

// DisputeTimeout is the interval after which the realtor may unilaterally
// reclaim funds from a stalled dispute.
const DisputeTimeout = 7 * 24 * time.Hour

// Error kinds. Every operation failure wraps exactly one of these so callers
// can classify rejections without parsing reason strings.
var (
	// ErrUnauthorized marks a caller that does not hold the required role.
	ErrUnauthorized = errors.New("custody: unauthorized")
	// ErrInvalidState marks an operation invoked from a status that does not
	// permit it.
	ErrInvalidState = errors.New("custody: invalid state")
	// ErrWrongValue marks an attached payment that does not exactly equal the
	// required amount.
	ErrWrongValue = errors.New("custody: wrong value")
	// ErrTimeoutNotReached marks a timeout-gated operation invoked before the
	// window has elapsed.
	ErrTimeoutNotReached = errors.New("custody: dispute timeout not reached")
)

var (
	errNilState = errors.New("custody engine: state not configured")
	// ErrNotFound is returned when no instance exists under the identifier.
	ErrNotFound = errors.New("custody engine: instance not found")
)

// engineState is the narrow view of ledger state the engine needs. The state
// manager implements it over the key-value store; tests implement it in
// memory.
type engineState interface {
	CustodyPut(*Instance) error
	CustodyGet(id [32]byte) (*Instance, bool)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	VaultAddress() [20]byte
}

// Engine executes custody transitions against external state. All guards run
// before any mutation; settlements flip the instance to its terminal status
// before the vault pays out, so a racing second call always observes the
// already-spent record and fails.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an engine with a no-op emitter and wall-clock time.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests that
// need deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) loadInstance(id [32]byte) (*Instance, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	inst, ok := e.state.CustodyGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return inst, nil
}

func (e *Engine) storeInstance(inst *Instance) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.CustodyPut(inst)
}

// Get returns a copy of the stored instance.
func (e *Engine) Get(id [32]byte) (*Instance, error) {
	inst, err := e.loadInstance(id)
	if err != nil {
		return nil, err
	}
	return inst.Clone(), nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return types.NewAccount()
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return fmt.Errorf("custody: transfer amount must be positive")
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return fmt.Errorf("custody: insufficient balance")
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

func failTerminal(inst *Instance) error {
	return fmt.Errorf("%w: custody already settled as %s", ErrInvalidState, inst.Status)
}

// Accept binds the caller as contractor on an open job. Only valid on the
// open-job variant while the contractor slot is empty, and the realtor may
// not fill its own job.
func (e *Engine) Accept(id [32]byte, caller [20]byte) error {
	inst, err := e.loadInstance(id)
	if err != nil {
		return err
	}
	if inst.Status.Terminal() {
		return failTerminal(inst)
	}
	if inst.Variant != VariantOpenJob {
		return fmt.Errorf("%w: fixed-pair custody has no acceptance step", ErrInvalidState)
	}
	if inst.Status != StatusCreated || inst.ContractorBound() {
		return fmt.Errorf("%w: contractor already bound", ErrInvalidState)
	}
	if caller == inst.Realtor {
		return fmt.Errorf("%w: realtor cannot self-accept", ErrUnauthorized)
	}
	if caller == ([20]byte{}) {
		return fmt.Errorf("%w: contractor address required", ErrUnauthorized)
	}
	inst.Contractor = caller
	inst.Status = StatusAccepted
	if err := e.storeInstance(inst); err != nil {
		return err
	}
	e.emit(AcceptedEvent{ID: inst.ID, Contractor: caller})
	return nil
}

// Fund moves exactly the custody amount from the realtor into the vault. The
// attached value must match the amount to the unit; both under- and
// over-payment are rejected before any state changes.
func (e *Engine) Fund(id [32]byte, caller [20]byte, value *big.Int) error {
	inst, err := e.loadInstance(id)
	if err != nil {
		return err
	}
	if inst.Status.Terminal() {
		return failTerminal(inst)
	}
	if caller != inst.Realtor {
		return fmt.Errorf("%w: only realtor", ErrUnauthorized)
	}
	fundableFrom := StatusCreated
	if inst.Variant == VariantOpenJob {
		fundableFrom = StatusAccepted
	}
	switch {
	case inst.Status == fundableFrom:
		// fall through to the value check
	case inst.Variant == VariantOpenJob && inst.Status == StatusCreated:
		return fmt.Errorf("%w: must accept before funding", ErrInvalidState)
	default:
		return fmt.Errorf("%w: already funded or active", ErrInvalidState)
	}
	if value == nil || value.Cmp(inst.Amount) != 0 {
		return fmt.Errorf("%w: must send exact amount", ErrWrongValue)
	}
	if err := e.transfer(inst.Realtor, e.state.VaultAddress(), inst.Amount); err != nil {
		return err
	}
	inst.Balance = cloneBigInt(inst.Amount)
	inst.Status = StatusFunded
	if err := e.storeInstance(inst); err != nil {
		return err
	}
	e.emit(FundedEvent{ID: inst.ID, Realtor: inst.Realtor, Amount: cloneBigInt(inst.Amount)})
	return nil
}

// Approve signs off on the work, unlocking withdrawal by the contractor.
func (e *Engine) Approve(id [32]byte, caller [20]byte) error {
	inst, err := e.loadInstance(id)
	if err != nil {
		return err
	}
	if inst.Status.Terminal() {
		return failTerminal(inst)
	}
	if caller != inst.Realtor {
		return fmt.Errorf("%w: only realtor", ErrUnauthorized)
	}
	if inst.Status != StatusFunded {
		return fmt.Errorf("%w: not funded", ErrInvalidState)
	}
	inst.Status = StatusApproved
	if err := e.storeInstance(inst); err != nil {
		return err
	}
	e.emit(ApprovedEvent{ID: inst.ID, Realtor: inst.Realtor})
	return nil
}

// Withdraw pays the full balance to the contractor after approval.
func (e *Engine) Withdraw(id [32]byte, caller [20]byte) error {
	inst, err := e.loadInstance(id)
	if err != nil {
		return err
	}
	if inst.Status.Terminal() {
		return failTerminal(inst)
	}
	if !inst.ContractorBound() || caller != inst.Contractor {
		return fmt.Errorf("%w: only contractor", ErrUnauthorized)
	}
	if inst.Status != StatusApproved {
		return fmt.Errorf("%w: not approved", ErrInvalidState)
	}
	amount := cloneBigInt(inst.Amount)
	if err := e.settle(inst, inst.Contractor, StatusPaid); err != nil {
		return err
	}
	e.emit(PaidEvent{ID: inst.ID, Contractor: inst.Contractor, Amount: amount})
	return nil
}

// Refund returns the full balance to the realtor before approval. The direct
// path only exists on the fixed-pair variant; open jobs must resolve refunds
// through the dispute protocol.
func (e *Engine) Refund(id [32]byte, caller [20]byte) error {
	inst, err := e.loadInstance(id)
	if err != nil {
		return err
	}
	if inst.Status.Terminal() {
		return failTerminal(inst)
	}
	if caller != inst.Realtor {
		return fmt.Errorf("%w: only realtor", ErrUnauthorized)
	}
	if inst.Variant == VariantOpenJob {
		return fmt.Errorf("%w: use dispute resolution", ErrInvalidState)
	}
	if inst.Status != StatusFunded {
		return fmt.Errorf("%w: can only refund when funded and not approved", ErrInvalidState)
	}
	amount := cloneBigInt(inst.Amount)
	if err := e.settle(inst, inst.Realtor, StatusRefunded); err != nil {
		return err
	}
	e.emit(RefundedEvent{ID: inst.ID, Realtor: inst.Realtor, Amount: amount})
	return nil
}

// OpenDispute freezes a funded instance pending mutual agreement or timeout.
// Either party may open it; the vote flags reset and the dispute clock is
// recorded exactly once.
func (e *Engine) OpenDispute(id [32]byte, caller [20]byte) error {
	inst, err := e.loadInstance(id)
	if err != nil {
		return err
	}
	if inst.Status.Terminal() {
		return failTerminal(inst)
	}
	if inst.Status != StatusFunded {
		return fmt.Errorf("%w: not funded", ErrInvalidState)
	}
	if !inst.IsParty(caller) {
		return fmt.Errorf("%w: not a party", ErrUnauthorized)
	}
	inst.Status = StatusDisputed
	inst.DisputeOpenedAt = e.now()
	inst.Votes = VoteSet{}
	if err := e.storeInstance(inst); err != nil {
		return err
	}
	e.emit(DisputeOpenedEvent{ID: inst.ID, OpenedBy: caller, OpenedAt: inst.DisputeOpenedAt})
	return nil
}

// AgreePayContractor records the caller's vote to settle in the contractor's
// favour. When both parties hold the same vote the balance pays out
// immediately; a lone vote only records.
func (e *Engine) AgreePayContractor(id [32]byte, caller [20]byte) error {
	return e.vote(id, caller, true)
}

// AgreeRefundRealtor records the caller's vote to settle in the realtor's
// favour, paying out once both parties agree.
func (e *Engine) AgreeRefundRealtor(id [32]byte, caller [20]byte) error {
	return e.vote(id, caller, false)
}

func (e *Engine) vote(id [32]byte, caller [20]byte, pay bool) error {
	inst, err := e.loadInstance(id)
	if err != nil {
		return err
	}
	if inst.Status.Terminal() {
		return failTerminal(inst)
	}
	if inst.Status != StatusDisputed {
		return fmt.Errorf("%w: not disputed", ErrInvalidState)
	}
	if !inst.IsParty(caller) {
		return fmt.Errorf("%w: not a party", ErrUnauthorized)
	}
	flag := e.voteFlag(inst, caller, pay)
	if *flag {
		return fmt.Errorf("%w: vote already recorded", ErrInvalidState)
	}
	*flag = true
	switch {
	case pay && inst.Votes.BothAgreePay():
		amount := cloneBigInt(inst.Amount)
		if err := e.settle(inst, inst.Contractor, StatusPaid); err != nil {
			return err
		}
		e.emit(PaidEvent{ID: inst.ID, Contractor: inst.Contractor, Amount: amount})
		return nil
	case !pay && inst.Votes.BothAgreeRefund():
		amount := cloneBigInt(inst.Amount)
		if err := e.settle(inst, inst.Realtor, StatusRefunded); err != nil {
			return err
		}
		e.emit(RefundedEvent{ID: inst.ID, Realtor: inst.Realtor, Amount: amount})
		return nil
	}
	if err := e.storeInstance(inst); err != nil {
		return err
	}
	e.emit(DisputeVoteEvent{ID: inst.ID, Voter: caller, Pay: pay, Refund: !pay})
	return nil
}

func (e *Engine) voteFlag(inst *Instance, caller [20]byte, pay bool) *bool {
	isRealtor := caller == inst.Realtor
	switch {
	case pay && isRealtor:
		return &inst.Votes.RealtorAgreesPay
	case pay:
		return &inst.Votes.ContractorAgreesPay
	case isRealtor:
		return &inst.Votes.RealtorAgreesRefund
	default:
		return &inst.Votes.ContractorAgreesRefund
	}
}

// RefundAfterDisputeTimeout lets the realtor unilaterally reclaim funds once
// the dispute has been open for at least DisputeTimeout. The window is
// measured against the single timestamp recorded when the dispute opened.
func (e *Engine) RefundAfterDisputeTimeout(id [32]byte, caller [20]byte) error {
	inst, err := e.loadInstance(id)
	if err != nil {
		return err
	}
	if inst.Status.Terminal() {
		return failTerminal(inst)
	}
	if inst.Status != StatusDisputed {
		return fmt.Errorf("%w: not disputed", ErrInvalidState)
	}
	if caller != inst.Realtor {
		return fmt.Errorf("%w: only realtor", ErrUnauthorized)
	}
	if e.now()-inst.DisputeOpenedAt < int64(DisputeTimeout/time.Second) {
		return fmt.Errorf("%w", ErrTimeoutNotReached)
	}
	amount := cloneBigInt(inst.Amount)
	if err := e.settle(inst, inst.Realtor, StatusRefunded); err != nil {
		return err
	}
	e.emit(DisputeTimeoutRefundEvent{ID: inst.ID, Realtor: inst.Realtor, Amount: amount})
	return nil
}

// settle pays the full balance to exactly one party and marks the instance
// terminal. The record is flipped to its spent status and persisted before
// the vault transfer executes, so no repeated call can observe a payable
// state once money starts moving. The vault balance is verified up front to
// keep the whole operation all-or-nothing.
func (e *Engine) settle(inst *Instance, recipient [20]byte, status Status) error {
	if inst == nil {
		return fmt.Errorf("custody: nil instance")
	}
	if !status.Terminal() {
		return fmt.Errorf("custody: settlement status must be terminal")
	}
	if inst.Balance == nil || inst.Balance.Cmp(inst.Amount) != 0 {
		return fmt.Errorf("custody: balance does not cover settlement")
	}
	amount := cloneBigInt(inst.Amount)
	vault := e.state.VaultAddress()
	vaultAcc, err := e.state.GetAccount(vault[:])
	if err != nil {
		return err
	}
	if ensureAccount(vaultAcc).Balance.Cmp(amount) < 0 {
		return fmt.Errorf("custody: vault balance below settlement amount")
	}
	inst.Balance = big.NewInt(0)
	inst.Status = status
	if err := e.storeInstance(inst); err != nil {
		return err
	}
	return e.transfer(vault, recipient, amount)
}
