package worker

import "sync/atomic"

// claimed marks the slot taken before the job id is known.
const claimed = -1

// atomicJobID is the process-level single-flight flag: zero means idle,
// anything else means a poll cycle owns the slot.
type atomicJobID struct {
	value atomic.Int64
}

func (a *atomicJobID) TryAcquire() bool {
	return a.value.CompareAndSwap(0, claimed)
}

func (a *atomicJobID) Set(jobID int64) {
	a.value.Store(jobID)
}

func (a *atomicJobID) Release() {
	a.value.Store(0)
}

func (a *atomicJobID) Current() int64 {
	current := a.value.Load()
	if current == claimed {
		return 0
	}
	return current
}
