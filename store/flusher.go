package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/maozostr/ember/log"
)

// defaultFlushInterval is how often the flusher checks for quiescence when
// no interval is configured.
const defaultFlushInterval = 500 * time.Millisecond

// Flusher periodically flushes an environment's durable state to disk from a
// background goroutine.  A flush only runs once the environment has been
// quiet for a full interval: written to since the last flush but not written
// to during the last tick.
type Flusher struct {
	// The following variables must only be used atomically.
	started  int32
	shutdown int32

	env      *Env
	interval time.Duration

	// lastSeen and lastFlushed are only touched from the flush goroutine
	// and from tests.
	lastSeen    uint64
	lastFlushed uint64

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewFlusher returns a flusher for the environment.  A non-positive interval
// selects the default.
func NewFlusher(env *Env, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &Flusher{
		env:      env,
		interval: interval,
		quit:     make(chan struct{}),
	}
}

// Start begins the background flushing.  Calling Start more than once has no
// effect.
func (f *Flusher) Start() {
	// Already started?
	if atomic.AddInt32(&f.started, 1) != 1 {
		return
	}

	log.StorLog.Tracef("Starting flusher")
	f.wg.Add(1)
	go f.flushHandler()
}

// Stop gracefully shuts down the flusher and blocks until the background
// goroutine has exited.
func (f *Flusher) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&f.shutdown, 1) != 1 {
		log.StorLog.Warnf("Flusher is already in the process of " +
			"shutting down")
		return
	}

	log.StorLog.Tracef("Flusher shutting down")
	close(f.quit)
	f.wg.Wait()
}

// maybeFlush flushes the environment when it has been written to since the
// last flush and no new writes arrived during the last interval.
func (f *Flusher) maybeFlush() {
	count := f.env.UpdateCount()
	if count == f.lastSeen && count != f.lastFlushed {
		f.env.Flush(false)
		f.lastFlushed = count
	}
	f.lastSeen = count
}

// flushHandler is the flusher's main goroutine.
func (f *Flusher) flushHandler() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.maybeFlush()

		case <-f.quit:
			return
		}
	}
}
