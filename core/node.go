package core

import (
	"math/big"
	"sync"

	"jobescrow/core/events"
	"jobescrow/core/state"
	"jobescrow/core/types"
	"jobescrow/native/custody"
	"jobescrow/observability"
	"jobescrow/storage"
)

// Node owns the custody ledger and is the single entry point for every
// mutating operation. A node-wide mutex serializes state-changing calls so
// each runs to completion with no interleaving; racing external callers are
// sequenced here and the engine's guards decide the winner.
type Node struct {
	mu       sync.Mutex
	state    *state.Manager
	engine   *custody.Engine
	registry *custody.Registry
	metrics  *observability.CustodyMetrics
}

// NewNode wires the state manager, engine and registry over the given
// database. The emitter receives every custody event; pass nil to discard.
func NewNode(db storage.Database, emitter events.Emitter) *Node {
	manager := state.NewManager(db)
	engine := custody.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(emitter)
	registry := custody.NewRegistry(manager)
	registry.SetEmitter(emitter)
	return &Node{
		state:    manager,
		engine:   engine,
		registry: registry,
		metrics:  observability.Metrics(),
	}
}

// SetNowFunc overrides the time source of both the engine and the registry.
func (n *Node) SetNowFunc(now func() int64) {
	n.engine.SetNowFunc(now)
	n.registry.SetNowFunc(now)
}

func (n *Node) observe(op string, err error) error {
	n.metrics.ObserveOperation(op, err)
	return err
}

// CreateFixedPair creates custody with both roles bound.
func (n *Node) CreateFixedPair(realtor, contractor [20]byte, amount *big.Int, meta custody.Metadata) (*custody.Instance, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	inst, err := n.registry.CreateFixedPair(realtor, contractor, amount, meta)
	return inst, n.observe("create_fixed_pair", err)
}

// CreateOpenJob creates custody with the contractor slot open.
func (n *Node) CreateOpenJob(realtor [20]byte, amount *big.Int, meta custody.Metadata) (*custody.Instance, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	inst, err := n.registry.CreateOpenJob(realtor, amount, meta)
	return inst, n.observe("create_open_job", err)
}

// Accept binds the caller as contractor on an open job.
func (n *Node) Accept(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.observe("accept", n.engine.Accept(id, caller))
}

// Fund moves exactly the custody amount from the realtor into the vault.
func (n *Node) Fund(id [32]byte, caller [20]byte, value *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.observe("fund", n.engine.Fund(id, caller, value))
}

// Approve signs off on the work.
func (n *Node) Approve(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.observe("approve", n.engine.Approve(id, caller))
}

// Withdraw pays the balance to the contractor after approval.
func (n *Node) Withdraw(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.observe("withdraw", n.engine.Withdraw(id, caller))
}

// Refund returns the balance to the realtor (fixed-pair, pre-approval only).
func (n *Node) Refund(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.observe("refund", n.engine.Refund(id, caller))
}

// OpenDispute freezes a funded instance.
func (n *Node) OpenDispute(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.observe("open_dispute", n.engine.OpenDispute(id, caller))
}

// AgreePayContractor records a pay vote, settling when both parties agree.
func (n *Node) AgreePayContractor(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.observe("agree_pay_contractor", n.engine.AgreePayContractor(id, caller))
}

// AgreeRefundRealtor records a refund vote, settling when both parties agree.
func (n *Node) AgreeRefundRealtor(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.observe("agree_refund_realtor", n.engine.AgreeRefundRealtor(id, caller))
}

// RefundAfterDisputeTimeout is the realtor's unilateral escape from a stalled
// dispute.
func (n *Node) RefundAfterDisputeTimeout(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.observe("refund_after_timeout", n.engine.RefundAfterDisputeTimeout(id, caller))
}

// GetInstance resolves an identifier to a copy of its custody record.
func (n *Node) GetInstance(id [32]byte) (*custody.Instance, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Get(id)
}

// ListInstances returns every identifier in creation order.
func (n *Node) ListInstances() ([][32]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registry.List()
}

// GetAccount returns a copy of the account stored under addr.
func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.GetAccount(addr[:])
}

// Credit adds value to an account. Deployments use it to seed balances; the
// custody engine itself only ever moves existing funds.
func (n *Node) Credit(addr [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, err := n.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return n.state.PutAccount(addr[:], acc)
}
