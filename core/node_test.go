package core

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
	"time"

	"jobescrow/core/events"
	"jobescrow/native/custody"
	"jobescrow/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestNode() *Node {
	return NewNode(storage.NewMemDB(), events.NoopEmitter{})
}

func TestNodeFixedPairLifecycle(t *testing.T) {
	node := newTestNode()
	realtor := testAddr(0x01)
	contractor := testAddr(0x02)
	amount := big.NewInt(5_000)

	if err := node.Credit(realtor, big.NewInt(10_000)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	inst, err := node.CreateFixedPair(realtor, contractor, amount, custody.Metadata{})
	if err != nil {
		t.Fatalf("CreateFixedPair: %v", err)
	}
	if err := node.Fund(inst.ID, realtor, amount); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if err := node.Approve(inst.ID, realtor); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := node.Withdraw(inst.ID, contractor); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	acc, err := node.GetAccount(contractor)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Balance.Cmp(amount) != 0 {
		t.Fatalf("contractor balance = %s, want %s", acc.Balance, amount)
	}
	stored, err := node.GetInstance(inst.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if stored.Status != custody.StatusPaid || stored.Balance.Sign() != 0 {
		t.Fatalf("expected settled instance, got %s with balance %s", stored.Status, stored.Balance)
	}

	ids, err := node.ListInstances()
	if err != nil {
		t.Fatalf("ListInstances: %v", err)
	}
	if len(ids) != 1 || ids[0] != inst.ID {
		t.Fatalf("registry does not list the created instance")
	}
}

func TestNodeOpenJobDisputeTimeout(t *testing.T) {
	node := newTestNode()
	clock := int64(1_700_000_000)
	node.SetNowFunc(func() int64 { return clock })

	realtor := testAddr(0x01)
	contractor := testAddr(0x02)
	amount := big.NewInt(2_500)
	if err := node.Credit(realtor, amount); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	inst, err := node.CreateOpenJob(realtor, amount, custody.Metadata{})
	if err != nil {
		t.Fatalf("CreateOpenJob: %v", err)
	}
	if err := node.Accept(inst.ID, contractor); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := node.Fund(inst.ID, realtor, amount); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if err := node.Refund(inst.ID, realtor); !errors.Is(err, custody.ErrInvalidState) {
		t.Fatalf("open job must not allow a direct refund, got %v", err)
	}
	if err := node.OpenDispute(inst.ID, realtor); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}

	clock += int64((custody.DisputeTimeout - time.Hour) / time.Second)
	if err := node.RefundAfterDisputeTimeout(inst.ID, realtor); !errors.Is(err, custody.ErrTimeoutNotReached) {
		t.Fatalf("early timeout claim must fail, got %v", err)
	}
	clock += int64(2 * time.Hour / time.Second)
	if err := node.RefundAfterDisputeTimeout(inst.ID, realtor); err != nil {
		t.Fatalf("RefundAfterDisputeTimeout: %v", err)
	}

	acc, err := node.GetAccount(realtor)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Balance.Cmp(amount) != 0 {
		t.Fatalf("realtor should hold the refunded amount, got %s", acc.Balance)
	}
}

func TestNodeDisputeVotesSettle(t *testing.T) {
	node := newTestNode()
	realtor := testAddr(0x01)
	contractor := testAddr(0x02)
	amount := big.NewInt(900)
	if err := node.Credit(realtor, amount); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	inst, err := node.CreateFixedPair(realtor, contractor, amount, custody.Metadata{})
	if err != nil {
		t.Fatalf("CreateFixedPair: %v", err)
	}
	if err := node.Fund(inst.ID, realtor, amount); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if err := node.OpenDispute(inst.ID, contractor); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	if err := node.AgreePayContractor(inst.ID, realtor); err != nil {
		t.Fatalf("realtor vote: %v", err)
	}
	if err := node.AgreePayContractor(inst.ID, contractor); err != nil {
		t.Fatalf("contractor vote: %v", err)
	}
	stored, err := node.GetInstance(inst.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if stored.Status != custody.StatusPaid {
		t.Fatalf("expected paid status after mutual votes, got %s", stored.Status)
	}
}
