package engine

import (
	"time"

	"github.com/lc/ipsniper/internal/progress"
)

// Outcome classifies how a single domain's lookup ended.
type Outcome int

const (
	OutcomeMatched Outcome = iota
	OutcomeNoMatch
	OutcomeNoRecords
	OutcomeRetriesExhausted
	OutcomeOtherError

	numOutcomes
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeNoRecords:
		return "no_records"
	case OutcomeRetriesExhausted:
		return "retries_exhausted"
	case OutcomeOtherError:
		return "error"
	default:
		return "unknown"
	}
}

// ResolverTimeouts is the timeout tally of one resolver.
type ResolverTimeouts struct {
	Server string `json:"server"`
	Count  uint64 `json:"count"`
}

// Stats is a point-in-time view of a sweep.
type Stats struct {
	RunID         string             `json:"run_id"`
	Started       time.Time          `json:"started"`
	Elapsed       time.Duration      `json:"elapsed"`
	Total         int64              `json:"total"`
	Dispatched    int64              `json:"dispatched"`
	Processed     uint64             `json:"processed"`
	Matched       int64              `json:"matched"`
	Pending       int                `json:"pending"`
	Attempts      uint64             `json:"attempts"`
	CurrentRate   uint64             `json:"current_rate"`
	OverallRate   float64            `json:"overall_rate"`
	Flushes       uint64             `json:"flushes"`
	FlushFailures uint64             `json:"flush_failures"`
	Outcomes      map[string]uint64  `json:"outcomes"`
	Timeouts      []ResolverTimeouts `json:"timeouts"`
	TimeoutTotal  uint64             `json:"timeout_total"`
	Done          bool               `json:"done"`
}

// Snapshot returns the current Stats. It is safe to call while Run is in
// progress; before Run starts, timing fields are zero.
func (e *Engine) Snapshot() Stats {
	processed := e.processed.Load()
	st := Stats{
		RunID:         e.runID,
		Total:         e.total.Load(),
		Dispatched:    e.dispatched.Load(),
		Processed:     processed,
		Matched:       e.matches.Total(),
		Pending:       e.matches.Len(),
		Attempts:      e.attempts.Load(),
		CurrentRate:   e.monitor.Current(),
		Flushes:       e.flushes.Load(),
		FlushFailures: e.flushFailures.Load(),
		Outcomes:      make(map[string]uint64, numOutcomes),
		Done:          e.done.Load(),
	}
	if c := e.clock.Load(); c != nil {
		st.Started = c.Started()
		st.Elapsed = c.Elapsed()
		if st.Done {
			st.Elapsed = e.elapsed.Load()
		}
		st.OverallRate = progress.PerSecond(processed, st.Elapsed)
	}
	for o := Outcome(0); o < numOutcomes; o++ {
		st.Outcomes[o.String()] = e.outcomes[o].Load()
	}
	st.TimeoutTotal = e.ledger.Total()
	servers := e.pool.Servers()
	counts := e.ledger.Snapshot()
	st.Timeouts = make([]ResolverTimeouts, len(counts))
	for i, n := range counts {
		st.Timeouts[i] = ResolverTimeouts{Server: servers[i], Count: n}
	}
	return st
}
