package state

import (
	"math/big"
	"testing"

	"jobescrow/core/types"
	"jobescrow/native/custody"
	"jobescrow/storage"
)

func newTestManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func testInstance(id byte) *custody.Instance {
	var realtor, contractor [20]byte
	realtor[0] = 0x01
	contractor[0] = 0x02
	return &custody.Instance{
		ID:              [32]byte{id},
		Variant:         custody.VariantOpenJob,
		Realtor:         realtor,
		Contractor:      contractor,
		Amount:          big.NewInt(1500),
		Balance:         big.NewInt(1500),
		Status:          custody.StatusDisputed,
		CreatedAt:       1_700_000_000,
		DisputeOpenedAt: 1_700_000_500,
		Votes:           custody.VoteSet{RealtorAgreesRefund: true},
		Meta:            custody.Metadata{WorkLocation: "Worcester, MA", Description: "roof repair"},
	}
}

func TestCustodyRoundTrip(t *testing.T) {
	m := newTestManager()
	original := testInstance(0x11)
	if err := m.CustodyPut(original); err != nil {
		t.Fatalf("CustodyPut: %v", err)
	}

	loaded, ok := m.CustodyGet(original.ID)
	if !ok {
		t.Fatalf("stored instance not found")
	}
	if loaded.ID != original.ID ||
		loaded.Variant != original.Variant ||
		loaded.Realtor != original.Realtor ||
		loaded.Contractor != original.Contractor ||
		loaded.Status != original.Status ||
		loaded.CreatedAt != original.CreatedAt ||
		loaded.DisputeOpenedAt != original.DisputeOpenedAt ||
		loaded.Votes != original.Votes ||
		loaded.Meta != original.Meta {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, original)
	}
	if loaded.Amount.Cmp(original.Amount) != 0 || loaded.Balance.Cmp(original.Balance) != 0 {
		t.Fatalf("amounts did not survive the round trip")
	}
}

func TestCustodyGetReturnsFreshCopies(t *testing.T) {
	m := newTestManager()
	if err := m.CustodyPut(testInstance(0x22)); err != nil {
		t.Fatalf("CustodyPut: %v", err)
	}
	first, ok := m.CustodyGet([32]byte{0x22})
	if !ok {
		t.Fatalf("instance not found")
	}
	first.Status = custody.StatusPaid
	first.Balance.SetInt64(0)

	second, ok := m.CustodyGet([32]byte{0x22})
	if !ok {
		t.Fatalf("instance not found on reload")
	}
	if second.Status != custody.StatusDisputed || second.Balance.Int64() != 1500 {
		t.Fatalf("mutating a loaded copy leaked into storage")
	}
}

func TestCustodyPutRejectsCorruptRecords(t *testing.T) {
	m := newTestManager()
	bad := testInstance(0x33)
	bad.Balance = big.NewInt(7)
	if err := m.CustodyPut(bad); err == nil {
		t.Fatalf("partial balance must be rejected before persisting")
	}
	if _, ok := m.CustodyGet(bad.ID); ok {
		t.Fatalf("rejected record must not be stored")
	}
}

func TestCustodyGetUnknown(t *testing.T) {
	m := newTestManager()
	if _, ok := m.CustodyGet([32]byte{0xEE}); ok {
		t.Fatalf("unknown identifier must report not found")
	}
}

func TestRegistryIndexOrder(t *testing.T) {
	m := newTestManager()
	ids := [][32]byte{{0x01}, {0x02}, {0x03}}
	for _, id := range ids {
		if err := m.RegistryAppend(id); err != nil {
			t.Fatalf("RegistryAppend: %v", err)
		}
	}
	count, err := m.RegistryCount()
	if err != nil {
		t.Fatalf("RegistryCount: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 entries, got %d", count)
	}
	listed, err := m.RegistryList()
	if err != nil {
		t.Fatalf("RegistryList: %v", err)
	}
	for i, id := range ids {
		if listed[i] != id {
			t.Fatalf("index position %d out of order", i)
		}
	}
}

func TestAccountDefaultsToZero(t *testing.T) {
	m := newTestManager()
	addr := []byte{0xAA, 0xBB}
	acc, err := m.GetAccount(addr)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Balance.Sign() != 0 || acc.Nonce != 0 {
		t.Fatalf("missing account must read as zero, got %+v", acc)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	m := newTestManager()
	addr := []byte{0x01}
	if err := m.PutAccount(addr, &types.Account{Nonce: 7, Balance: big.NewInt(12345)}); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	acc, err := m.GetAccount(addr)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Nonce != 7 || acc.Balance.Int64() != 12345 {
		t.Fatalf("account round trip mismatch: %+v", acc)
	}
}

func TestPutAccountRejectsNegativeBalance(t *testing.T) {
	m := newTestManager()
	err := m.PutAccount([]byte{0x01}, &types.Account{Balance: big.NewInt(-1)})
	if err == nil {
		t.Fatalf("negative balance must be rejected")
	}
}

func TestVaultAddressIsStable(t *testing.T) {
	a := newTestManager().VaultAddress()
	b := newTestManager().VaultAddress()
	if a != b {
		t.Fatalf("vault address must not depend on the manager instance")
	}
	if a == ([20]byte{}) {
		t.Fatalf("vault address must not be zero")
	}
}
