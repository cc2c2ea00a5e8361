package synth

import (
	"bytes"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	// outputTail is how much worker output is kept for error reports.
	outputTail = 4096
	// maxLine forces out a line the worker never terminates.
	maxLine = 64 << 10
)

// outputWriter forwards a worker's output stream to the logger one line at
// a time and keeps only the last outputTail bytes.
type outputWriter struct {
	log    zerolog.Logger
	stream string

	mu   sync.Mutex
	line []byte
	tail []byte
}

func newOutputWriter(log zerolog.Logger, stream string) *outputWriter {
	return &outputWriter{log: log, stream: stream}
}

func (w *outputWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tail = append(w.tail, p...)
	if over := len(w.tail) - outputTail; over > 0 {
		copy(w.tail, w.tail[over:])
		w.tail = w.tail[:outputTail]
	}
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			w.line = append(w.line, p...)
			if len(w.line) >= maxLine {
				w.emit()
			}
			break
		}
		w.line = append(w.line, p[:i]...)
		w.emit()
		p = p[i+1:]
	}
	return n, nil
}

// emit logs the pending line. Callers hold mu.
func (w *outputWriter) emit() {
	if s := strings.TrimRight(string(w.line), "\r"); s != "" {
		w.log.Debug().Str("stream", w.stream).Msg(s)
	}
	w.line = w.line[:0]
}

// Flush logs an unterminated last line.
func (w *outputWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit()
}

// Tail returns the most recent output.
func (w *outputWriter) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.tail))
}
