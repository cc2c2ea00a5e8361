package pipeline

import (
	"errors"
	"sync/atomic"
	"time"
)

// DefaultStallTimeout is how long a full delivery queue is tolerated before
// the client is abandoned.
const DefaultStallTimeout = 30 * time.Second

// sinkQueue bounds the PCM chunks buffered for a slow client.
const sinkQueue = 64

var errSinkStalled = errors.New("client stopped reading")

// sinkWriter delivers stream output to a Sink from its own goroutine, so the
// model callback never waits on the client and the use-slot is released on
// time. Begin is sent with the first queued block.
type sinkWriter struct {
	sink   Sink
	header Header
	stall  time.Duration
	q      chan []byte
	done   chan struct{}

	abandoned atomic.Bool

	// Owned by loop; read after done is closed.
	begun bool
	bytes int
	err   error
}

func startSinkWriter(sink Sink, h Header, stall time.Duration) *sinkWriter {
	if stall <= 0 {
		stall = DefaultStallTimeout
	}
	w := &sinkWriter{
		sink:   sink,
		header: h,
		stall:  stall,
		q:      make(chan []byte, sinkQueue),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *sinkWriter) loop() {
	defer close(w.done)
	for b := range w.q {
		if w.err != nil || w.abandoned.Load() {
			continue
		}
		if !w.begun {
			w.begun = true
			if w.err = w.sink.Begin(w.header); w.err != nil {
				continue
			}
		}
		if len(b) == 0 {
			continue
		}
		if w.err = w.sink.Write(b); w.err == nil {
			w.bytes += len(b)
		}
	}
}

// send queues b. Once the queue has stayed full for the stall timeout the
// client is abandoned and later blocks are dropped.
func (w *sinkWriter) send(b []byte) {
	if w.abandoned.Load() {
		return
	}
	select {
	case w.q <- b:
		return
	default:
	}
	t := time.NewTimer(w.stall)
	defer t.Stop()
	select {
	case w.q <- b:
	case <-t.C:
		w.abandoned.Store(true)
	}
}

// close ends the stream and waits for the in-flight write, if any.
func (w *sinkWriter) close() (begun bool, bytes int, err error) {
	close(w.q)
	<-w.done
	err = w.err
	if err == nil && w.abandoned.Load() {
		err = errSinkStalled
	}
	return w.begun, w.bytes, err
}
