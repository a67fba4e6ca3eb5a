// Package audit carries the durable per-run operation trail. Components get a
// Recorder bound to one user; where the rows end up is decided by the Sink.
package audit

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"stockbot/src/model"
)

// Sink persists audit rows. Implementations must be safe for concurrent use
// by runs of different users.
type Sink interface {
	Record(ctx context.Context, op *model.BotOperation) error
}

// Recorder writes entries for a single user. A failed write is logged and
// swallowed: the trail never decides whether an order goes out.
type Recorder struct {
	sink   Sink
	userID uint
	now    func() time.Time
}

func NewRecorder(sink Sink, userID uint) *Recorder {
	return &Recorder{sink: sink, userID: userID, now: time.Now}
}

// WithClock returns a copy that stamps entries with now.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	cp := *r
	cp.now = now
	return &cp
}

func (r *Recorder) UserID() uint {
	if r == nil {
		return 0
	}
	return r.userID
}

// Log appends one entry. An empty symbol is stored as model.NoSymbol.
func (r *Recorder) Log(
	ctx context.Context,
	symbol string,
	stage model.Stage,
	status model.OperationStatus,
	reason string,
) {
	if r == nil {
		return
	}
	if symbol == "" {
		symbol = model.NoSymbol
	}

	op := &model.BotOperation{
		UserID:      r.userID,
		StockSymbol: symbol,
		Stage:       stage,
		Status:      status,
		Reason:      reason,
		Timestamp:   r.now().UTC(),
	}

	if r.sink == nil {
		return
	}

	// a cancelled run still leaves its trail
	if err := r.sink.Record(context.WithoutCancel(ctx), op); err != nil {
		logger.WithFields(map[string]interface{}{
			"user_id": r.userID,
			"symbol":  symbol,
			"stage":   stage,
			"status":  status,
		}).WithError(err).Warn("failed to persist bot operation")
	}
}

// MemorySink keeps entries in memory. Used by dry runs and tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []model.BotOperation
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Record(_ context.Context, op *model.BotOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *op)
	return nil
}

// Entries returns a copy of everything recorded so far, in insertion order.
func (m *MemorySink) Entries() []model.BotOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BotOperation, len(m.entries))
	copy(out, m.entries)
	return out
}

// ForSymbol filters Entries by stock symbol.
func (m *MemorySink) ForSymbol(symbol string) []model.BotOperation {
	var out []model.BotOperation
	for _, e := range m.Entries() {
		if e.StockSymbol == symbol {
			out = append(out, e)
		}
	}
	return out
}
