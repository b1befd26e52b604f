package custody

import (
	"fmt"
	"math/big"
	"strings"
)

// Status enumerates the lifecycle states of a custody instance. Transitions
// only ever move forward through the table enforced by the engine; Paid and
// Refunded are terminal.
type Status uint8

const (
	StatusCreated Status = iota
	StatusAccepted
	StatusFunded
	StatusApproved
	StatusDisputed
	StatusPaid
	StatusRefunded
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusAccepted, StatusFunded, StatusApproved, StatusDisputed, StatusPaid, StatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusRefunded
}

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusAccepted:
		return "accepted"
	case StatusFunded:
		return "funded"
	case StatusApproved:
		return "approved"
	case StatusDisputed:
		return "disputed"
	case StatusPaid:
		return "paid"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Variant selects between the two onboarding lifecycles. Fixed-pair custody
// binds the contractor at creation and permits a direct pre-approval refund.
// Open-job custody leaves the contractor slot empty until a candidate accepts
// and routes every refund through dispute resolution.
type Variant uint8

const (
	VariantFixedPair Variant = iota
	VariantOpenJob
)

// Valid reports whether the variant value is within the supported range.
func (v Variant) Valid() bool {
	return v == VariantFixedPair || v == VariantOpenJob
}

func (v Variant) String() string {
	switch v {
	case VariantFixedPair:
		return "fixed_pair"
	case VariantOpenJob:
		return "open_job"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// VoteSet records the four independent dispute votes keyed by (party,
// outcome). Each flag is set at most once per dispute; the set is cleared when
// a dispute opens.
type VoteSet struct {
	RealtorAgreesPay       bool
	ContractorAgreesPay    bool
	RealtorAgreesRefund    bool
	ContractorAgreesRefund bool
}

// BothAgreePay reports whether both parties voted to pay the contractor.
func (v VoteSet) BothAgreePay() bool {
	return v.RealtorAgreesPay && v.ContractorAgreesPay
}

// BothAgreeRefund reports whether both parties voted to refund the realtor.
func (v VoteSet) BothAgreeRefund() bool {
	return v.RealtorAgreesRefund && v.ContractorAgreesRefund
}

// Metadata carries the descriptive fields attached at creation. It plays no
// role in any guard.
type Metadata struct {
	WorkLocation string
	Description  string
}

// Instance is one custody agreement: a single payment held between a realtor
// (the paying party) and a contractor (the performing party). The identifier,
// parties, amount and variant are immutable after creation; status, balance,
// dispute timestamp and votes advance only through the engine.
type Instance struct {
	ID              [32]byte
	Variant         Variant
	Realtor         [20]byte
	Contractor      [20]byte
	Amount          *big.Int
	Balance         *big.Int
	Status          Status
	CreatedAt       int64
	DisputeOpenedAt int64
	Votes           VoteSet
	Meta            Metadata
}

// ContractorBound reports whether the contractor slot has been filled.
func (in *Instance) ContractorBound() bool {
	return in.Contractor != ([20]byte{})
}

// IsParty reports whether addr is the realtor or the bound contractor.
func (in *Instance) IsParty(addr [20]byte) bool {
	if addr == in.Realtor {
		return true
	}
	return in.ContractorBound() && addr == in.Contractor
}

// Clone returns a deep copy of the instance so callers can safely mutate the
// copy without affecting the stored record.
func (in *Instance) Clone() *Instance {
	if in == nil {
		return nil
	}
	clone := *in
	if in.Amount != nil {
		clone.Amount = new(big.Int).Set(in.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if in.Balance != nil {
		clone.Balance = new(big.Int).Set(in.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	return &clone
}

// SanitizeInstance validates and normalises a custody record, returning a
// cloned instance with non-nil amount fields and trimmed metadata. The
// original value is not mutated.
func SanitizeInstance(in *Instance) (*Instance, error) {
	if in == nil {
		return nil, fmt.Errorf("custody: nil instance")
	}
	clone := in.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("custody: invalid status %d", clone.Status)
	}
	if !clone.Variant.Valid() {
		return nil, fmt.Errorf("custody: invalid variant %d", clone.Variant)
	}
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("custody: amount must be positive")
	}
	if clone.Balance.Sign() != 0 && clone.Balance.Cmp(clone.Amount) != 0 {
		return nil, fmt.Errorf("custody: balance must be zero or the exact amount")
	}
	clone.Meta.WorkLocation = strings.TrimSpace(clone.Meta.WorkLocation)
	clone.Meta.Description = strings.TrimSpace(clone.Meta.Description)
	return clone, nil
}
