package engine

import "github.com/coverscope/harvest/pkg/dataset"

// EventType labels progress events emitted during a batch run.
type EventType string

const (
	EventBatchStart      EventType = "batch_start"
	EventRowStart        EventType = "row_start"
	EventRowDone         EventType = "row_done"
	EventReauthenticated EventType = "reauthenticated"
	EventBatchDone       EventType = "batch_done"
)

// Event is one progress notification. Fields are populated per type:
// row events carry RowIndex/Term/Status, terminal events carry the
// running counters.
type Event struct {
	Type    EventType
	BatchID string

	RowIndex int // 0-based input row
	Total    int
	Term     string

	Status dataset.RowStatus
	Error  string

	Processed int
	Matched   int
	Failed    int
}

// eventBuffer sizes the progress channel. Emission never blocks; a
// slow consumer loses events rather than stalling the scrape.
const eventBuffer = 256

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// Events returns the progress stream for the engine's runs.
func (e *Engine) Events() <-chan Event {
	return e.events
}
