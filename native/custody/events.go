package custody

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"jobescrow/core/types"
	"jobescrow/crypto"
)

const (
	EventTypeCreated              = "custody.created"
	EventTypeAccepted             = "custody.accepted"
	EventTypeFunded               = "custody.funded"
	EventTypeApproved             = "custody.approved"
	EventTypePaid                 = "custody.paid"
	EventTypeRefunded             = "custody.refunded"
	EventTypeDisputeOpened        = "custody.dispute_opened"
	EventTypeDisputeVote          = "custody.dispute_vote"
	EventTypeDisputeTimeoutRefund = "custody.dispute_timeout_refund"
)

func eventAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.EscrowPrefix, addr[:]).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// CreatedEvent is emitted once per instance when the registry instantiates it.
type CreatedEvent struct {
	ID         [32]byte
	Variant    Variant
	Realtor    [20]byte
	Contractor [20]byte
	Amount     *big.Int
	CreatedAt  int64
}

func (CreatedEvent) EventType() string { return EventTypeCreated }

func (e CreatedEvent) Event() *types.Event {
	attrs := map[string]string{
		"id":        hex.EncodeToString(e.ID[:]),
		"variant":   e.Variant.String(),
		"realtor":   eventAddress(e.Realtor),
		"amount":    formatAmount(e.Amount),
		"createdAt": strconv.FormatInt(e.CreatedAt, 10),
	}
	if e.Contractor != ([20]byte{}) {
		attrs["contractor"] = eventAddress(e.Contractor)
	}
	return &types.Event{Type: EventTypeCreated, Attributes: attrs}
}

// AcceptedEvent is emitted when a contractor binds itself to an open job.
type AcceptedEvent struct {
	ID         [32]byte
	Contractor [20]byte
}

func (AcceptedEvent) EventType() string { return EventTypeAccepted }

func (e AcceptedEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeAccepted,
		Attributes: map[string]string{
			"id":         hex.EncodeToString(e.ID[:]),
			"contractor": eventAddress(e.Contractor),
		},
	}
}

// FundedEvent is emitted when the realtor moves the exact custody amount into
// the vault.
type FundedEvent struct {
	ID      [32]byte
	Realtor [20]byte
	Amount  *big.Int
}

func (FundedEvent) EventType() string { return EventTypeFunded }

func (e FundedEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeFunded,
		Attributes: map[string]string{
			"id":      hex.EncodeToString(e.ID[:]),
			"realtor": eventAddress(e.Realtor),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// ApprovedEvent is emitted when the realtor signs off on the work.
type ApprovedEvent struct {
	ID      [32]byte
	Realtor [20]byte
}

func (ApprovedEvent) EventType() string { return EventTypeApproved }

func (e ApprovedEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeApproved,
		Attributes: map[string]string{
			"id":      hex.EncodeToString(e.ID[:]),
			"realtor": eventAddress(e.Realtor),
		},
	}
}

// PaidEvent is emitted when the full balance settles to the contractor,
// whether through withdrawal after approval or a pay-out dispute resolution.
type PaidEvent struct {
	ID         [32]byte
	Contractor [20]byte
	Amount     *big.Int
}

func (PaidEvent) EventType() string { return EventTypePaid }

func (e PaidEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypePaid,
		Attributes: map[string]string{
			"id":         hex.EncodeToString(e.ID[:]),
			"contractor": eventAddress(e.Contractor),
			"amount":     formatAmount(e.Amount),
		},
	}
}

// RefundedEvent is emitted when the full balance settles back to the realtor,
// through the direct fixed-pair refund or a refund dispute resolution.
type RefundedEvent struct {
	ID      [32]byte
	Realtor [20]byte
	Amount  *big.Int
}

func (RefundedEvent) EventType() string { return EventTypeRefunded }

func (e RefundedEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeRefunded,
		Attributes: map[string]string{
			"id":      hex.EncodeToString(e.ID[:]),
			"realtor": eventAddress(e.Realtor),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// DisputeOpenedEvent is emitted when either party freezes a funded instance.
type DisputeOpenedEvent struct {
	ID       [32]byte
	OpenedBy [20]byte
	OpenedAt int64
}

func (DisputeOpenedEvent) EventType() string { return EventTypeDisputeOpened }

func (e DisputeOpenedEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeDisputeOpened,
		Attributes: map[string]string{
			"id":       hex.EncodeToString(e.ID[:]),
			"openedBy": eventAddress(e.OpenedBy),
			"openedAt": strconv.FormatInt(e.OpenedAt, 10),
		},
	}
}

// DisputeVoteEvent is emitted when a vote is recorded without resolving the
// dispute. A vote that completes a two-sided agreement emits PaidEvent or
// RefundedEvent instead.
type DisputeVoteEvent struct {
	ID     [32]byte
	Voter  [20]byte
	Pay    bool
	Refund bool
}

func (DisputeVoteEvent) EventType() string { return EventTypeDisputeVote }

func (e DisputeVoteEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeDisputeVote,
		Attributes: map[string]string{
			"id":     hex.EncodeToString(e.ID[:]),
			"voter":  eventAddress(e.Voter),
			"pay":    strconv.FormatBool(e.Pay),
			"refund": strconv.FormatBool(e.Refund),
		},
	}
}

// DisputeTimeoutRefundEvent is emitted when the realtor reclaims funds from a
// stalled dispute after the timeout window.
type DisputeTimeoutRefundEvent struct {
	ID      [32]byte
	Realtor [20]byte
	Amount  *big.Int
}

func (DisputeTimeoutRefundEvent) EventType() string { return EventTypeDisputeTimeoutRefund }

func (e DisputeTimeoutRefundEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeDisputeTimeoutRefund,
		Attributes: map[string]string{
			"id":      hex.EncodeToString(e.ID[:]),
			"realtor": eventAddress(e.Realtor),
			"amount":  formatAmount(e.Amount),
		},
	}
}
