package workerpresentation

import (
	"context"
	"sync"

	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"
)

const defaultMonitorCapacity = 10000

// Monitor listens on every mark channel. It counts marks and keeps the most recent
// instances so a driver can ask how a transaction ended.
type Monitor struct {
	mu       sync.RWMutex
	marks    map[string][]saga.TransactionMark
	order    []string
	capacity int

	counter observability.Counter // saga_transaction_marks_total{type,status,origin}
	log     observability.Logger
}

func NewMonitor(capacity int, tel observability.Observability) *Monitor {
	if capacity <= 0 {
		capacity = defaultMonitorCapacity
	}
	tel = observability.OrNop(tel)
	return &Monitor{
		marks:    make(map[string][]saga.TransactionMark),
		capacity: capacity,
		counter:  tel.Metrics().Counter(observability.MTransactionMarks),
		log:      tel.Logger().With(observability.F("component", "mark_monitor")),
	}
}

func (m *Monitor) Start(sub domoutbox.Subscriber) {
	for _, ch := range saga.Channels() {
		sub.Subscribe(ch, m.handle)
	}
}

func (m *Monitor) handle(ctx context.Context, e domoutbox.Event) error {
	mark, ok := e.(saga.TransactionMark)
	if !ok {
		return nil
	}
	m.counter.Add(1,
		observability.L("type", string(mark.Type)),
		observability.L("status", string(mark.Status)),
		observability.L("origin", mark.Origin),
	)
	logctx.FromOr(ctx, m.log).Info("transaction_mark",
		observability.F("instance_id", mark.InstanceID),
		observability.F("transaction_type", string(mark.Type)),
		observability.F("participant_key", mark.ParticipantKey),
		observability.F("mark_status", string(mark.Status)),
		observability.F("origin", mark.Origin),
	)
	m.record(mark)
	return nil
}

func (m *Monitor) record(mark saga.TransactionMark) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.marks[mark.InstanceID]; !ok {
		m.order = append(m.order, mark.InstanceID)
		if len(m.order) > m.capacity {
			delete(m.marks, m.order[0])
			m.order = m.order[1:]
		}
	}
	m.marks[mark.InstanceID] = append(m.marks[mark.InstanceID], mark)
}

// Marks returns the marks seen for instanceID in arrival order.
func (m *Monitor) Marks(instanceID string) []saga.TransactionMark {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]saga.TransactionMark(nil), m.marks[instanceID]...)
}

func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks = make(map[string][]saga.TransactionMark)
	m.order = nil
}
