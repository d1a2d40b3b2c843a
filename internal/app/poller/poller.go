package poller

import (
	"context"
	"time"
)

type Result string

const (
	// Resolved: the predicate came true.
	Resolved Result = "RESOLVED"
	// Failed: the watched state reported a terminal cancelled/failed.
	Failed Result = "FAILED"
	// TimedOut: attempts exhausted. Callers must treat this as "unknown,
	// check later", never as failure.
	TimedOut Result = "TIMED_OUT"
)

// Signal is what one probe attempt observed.
type Signal int

const (
	Continue Signal = iota
	Done
	Abort
)

// Probe inspects the watched state once. A returned error counts as a
// failed attempt but does not stop polling; flaky reads are the normal case.
type Probe func(ctx context.Context) (Signal, error)

type Options struct {
	Interval    time.Duration
	MaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 3 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 40
	}
	return o
}

// Poll runs probe at a fixed interval until it reports Done or Abort, the
// attempts run out, or ctx is cancelled. Cancellation has no side effect
// beyond ceasing further probes.
func Poll(ctx context.Context, opts Options, probe Probe) (Result, error) {
	opts = opts.withDefaults()

	timer := time.NewTimer(opts.Interval)
	defer timer.Stop()

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return TimedOut, ctx.Err()
		case <-timer.C:
		}

		signal, err := probe(ctx)
		if err == nil {
			switch signal {
			case Done:
				return Resolved, nil
			case Abort:
				return Failed, nil
			}
		}

		if attempt < opts.MaxAttempts {
			timer.Reset(opts.Interval)
		}
	}
	return TimedOut, nil
}
