package internal

import "time"

// BackoffFlags select the maximum wait of a [Backoff].
type BackoffFlags uint8

const (
	// BackoffCriticalPath caps waits for loops standing in for hardware,
	// such as a simulated DMA engine.
	BackoffCriticalPath BackoffFlags = 1 << iota
	// BackoffPolling caps waits for application loops polling a ring.
	BackoffPolling
)

const backoffMinWait = time.Microsecond

func backoffMaxWait(flags BackoffFlags) time.Duration {
	switch {
	case flags&BackoffCriticalPath != 0:
		return 1 * time.Millisecond
	case flags&BackoffPolling != 0:
		return 5 * time.Millisecond
	default:
		return time.Second
	}
}

// NewBackoff returns a ready to use exponential Backoff.
func NewBackoff(flags BackoffFlags) Backoff {
	return Backoff{
		wait:      uint32(backoffMinWait),
		maxWait:   uint32(backoffMaxWait(flags)),
		startWait: uint32(backoffMinWait),
	}
}

// A Backoff with a non-zero maxWait is ready for use.
type Backoff struct {
	// wait is how long Miss sleeps on its next call.
	wait uint32
	// maxWait caps wait.
	maxWait uint32
	// startWait is the initial wait, restored by Hit.
	startWait uint32
}

// Hit resets the wait after progress was made.
func (eb *Backoff) Hit() {
	if eb.maxWait == 0 {
		panic("MaxWait cannot be zero")
	}
	eb.wait = eb.startWait
}

// Miss sleeps and doubles the next wait up to its maximum.
func (eb *Backoff) Miss() {
	if eb.maxWait == 0 {
		panic("MaxWait cannot be zero")
	}
	time.Sleep(time.Duration(eb.wait))
	eb.wait *= 2
	if eb.wait > eb.maxWait {
		eb.wait = eb.maxWait
	}
}

// Wait returns the duration the next Miss sleeps for.
func (eb *Backoff) Wait() time.Duration { return time.Duration(eb.wait) }
