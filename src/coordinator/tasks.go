package coordinator

import (
	"sync"
	"sync/atomic"
)

// taskLimit is the maximum number of background tasks running at once. Extra
// tasks wait for a slot.
const taskLimit = 32

// taskManager launches the background tasks of the coordinator, limits how
// many run concurrently, and waits for all of them to complete.
type taskManager struct {
	wg      sync.WaitGroup
	sem     chan struct{}
	wgCount int32
}

func newTaskManager(limit int) *taskManager {
	return &taskManager{
		sem: make(chan struct{}, limit),
	}
}

// GoFunc launches a goroutine for a given function. It never blocks the
// caller; the function runs when fewer than the limit are running.
func (m *taskManager) GoFunc(f func()) {
	m.wg.Add(1)
	atomic.AddInt32(&m.wgCount, 1)
	go func() {
		defer m.wg.Done()
		defer atomic.AddInt32(&m.wgCount, -1)

		m.sem <- struct{}{}
		defer func() { <-m.sem }()

		f()
	}()
}

// Count returns the number of launched tasks that have not completed.
func (m *taskManager) Count() int {
	return int(atomic.LoadInt32(&m.wgCount))
}

// WaitRoutines waits for all the goroutines in the waitgroup.
func (m *taskManager) WaitRoutines() {
	m.wg.Wait()
}
