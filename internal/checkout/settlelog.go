package checkout

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// LogEntry is one append-only row in the settlement audit trail. Each phase
// transition of a settlement attempt is recorded with the OpenTelemetry
// identifiers that were active at the time, so a row can be joined directly
// with its distributed trace.
type LogEntry struct {
	SettlementID string
	Phase        Phase
	Detail       string
	TraceID      string
	SpanID       string
	At           time.Time
}

// SettleLog is the port for persisting audit rows. Append-only: every call
// adds a row, nothing is ever updated.
type SettleLog interface {
	Append(ctx context.Context, entry LogEntry) error
}

// newLogEntry builds an audit row, pulling trace/span IDs from the active
// span in ctx. Without an active span (unit tests) both IDs stay empty.
func newLogEntry(ctx context.Context, settlementID string, phase Phase, detail string) LogEntry {
	entry := LogEntry{
		SettlementID: settlementID,
		Phase:        phase,
		Detail:       detail,
		At:           time.Now().UTC(),
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}
	return entry
}
