package saga

import (
	"fmt"
	"sort"
)

// TransactionType names a saga stream. Each type owns one mark channel.
type TransactionType string

const (
	CustomerSession TransactionType = "CUSTOMER_SESSION"
	PriceUpdate     TransactionType = "PRICE_UPDATE"
	UpdateProduct   TransactionType = "UPDATE_PRODUCT"
)

const channelPrefix = "TransactionMark_"

// channels is built once; lookups never format strings on the hot path.
var channels = map[TransactionType]string{
	CustomerSession: channelPrefix + string(CustomerSession),
	PriceUpdate:     channelPrefix + string(PriceUpdate),
	UpdateProduct:   channelPrefix + string(UpdateProduct),
}

func (t TransactionType) Valid() bool {
	_, ok := channels[t]
	return ok
}

func (t *TransactionType) UnmarshalText(b []byte) error {
	v := TransactionType(b)
	if !v.Valid() {
		return fmt.Errorf("saga: unknown transaction type %q", b)
	}
	*t = v
	return nil
}

// Channel returns the mark channel for t, or "" for an unknown type.
func Channel(t TransactionType) string { return channels[t] }

// Channels lists every mark channel in a stable order.
func Channels() []string {
	out := make([]string, 0, len(channels))
	for _, c := range channels {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

type MarkStatus string

const (
	MarkSuccess     MarkStatus = "SUCCESS"
	MarkAbort       MarkStatus = "ABORT"
	MarkError       MarkStatus = "ERROR"
	MarkNotAccepted MarkStatus = "NOT_ACCEPTED"
)

func (s MarkStatus) Valid() bool {
	switch s {
	case MarkSuccess, MarkAbort, MarkError, MarkNotAccepted:
		return true
	}
	return false
}

func (s *MarkStatus) UnmarshalText(b []byte) error {
	v := MarkStatus(b)
	if !v.Valid() {
		return fmt.Errorf("saga: unknown mark status %q", b)
	}
	*s = v
	return nil
}

// TransactionMark is the terminal signal a participant reports for one saga instance.
type TransactionMark struct {
	InstanceID     string          `json:"instanceId"`
	Type           TransactionType `json:"transactionType"`
	ParticipantKey string          `json:"participantKey"`
	Status         MarkStatus      `json:"status"`
	Origin         string          `json:"originLabel"`
}

// EventName routes the mark onto its type's channel.
func (m TransactionMark) EventName() string { return Channel(m.Type) }

func NewMark(t TransactionType, instanceID, participantKey string, status MarkStatus, origin string) TransactionMark {
	return TransactionMark{
		InstanceID:     instanceID,
		Type:           t,
		ParticipantKey: participantKey,
		Status:         status,
		Origin:         origin,
	}
}
