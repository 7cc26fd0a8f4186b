package processor

import (
	"time"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// BatchState is one step of the batch lifecycle. Transitions are linear;
// once a batch reaches a terminal state it never re-enters processing.
type BatchState string

const (
	BatchPending     BatchState = "pending"
	BatchAcquiring   BatchState = "acquiring"
	BatchProcessing  BatchState = "processing"
	BatchAggregating BatchState = "aggregating"
	BatchCompleted   BatchState = "completed"
	BatchFailed      BatchState = "failed"
	BatchCancelled   BatchState = "cancelled"
)

// Terminal reports whether s is a final state.
func (s BatchState) Terminal() bool {
	switch s {
	case BatchCompleted, BatchFailed, BatchCancelled:
		return true
	}
	return false
}

// TickOutcome records the fate of one input tick.
type TickOutcome struct {
	Tick      domain.OddsTick
	Processed *domain.ProcessedTick // nil on error or duplicate
	Duplicate bool
	Err       error
	// Resource marks Err as a resource-level failure that aborted the batch
	// rather than an isolated per-tick error.
	Resource bool
	Elapsed  time.Duration
}

// BatchResult is the terminal record of one batch run.
type BatchResult struct {
	BatchID  string
	State    BatchState
	Outcomes []TickOutcome
	Fatal    error // set when State is failed or cancelled
	Started  time.Time
	Finished time.Time
}

// ProcessResult aggregates all batches of one ProcessBatch call.
type ProcessResult struct {
	Total      int
	Succeeded  int
	Failed     int
	Duplicates int
	Batches    []BatchResult
	// AvgTickDuration averages over ticks that actually ran, successes and
	// failures alike.
	AvgTickDuration time.Duration
	Elapsed         time.Duration
	// MemoryDeltaBytes is the heap allocation delta across the run. It can
	// be negative when the collector runs mid-batch.
	MemoryDeltaBytes int64
}

// ProcessedTicks returns the successfully processed ticks across all batches
// in input order.
func (r ProcessResult) ProcessedTicks() []domain.ProcessedTick {
	var out []domain.ProcessedTick
	for _, b := range r.Batches {
		for _, o := range b.Outcomes {
			if o.Processed != nil {
				out = append(out, *o.Processed)
			}
		}
	}
	return out
}

func aggregate(batches []BatchResult, started time.Time, memDelta int64) ProcessResult {
	result := ProcessResult{
		Batches:          batches,
		Elapsed:          time.Since(started),
		MemoryDeltaBytes: memDelta,
	}
	var totalDur time.Duration
	var ran int
	for _, b := range batches {
		for _, o := range b.Outcomes {
			result.Total++
			totalDur += o.Elapsed
			ran++
			switch {
			case o.Duplicate:
				result.Duplicates++
			case o.Err != nil:
				result.Failed++
			default:
				result.Succeeded++
			}
		}
	}
	if ran > 0 {
		result.AvgTickDuration = totalDur / time.Duration(ran)
	}
	return result
}
