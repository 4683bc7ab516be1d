package logger

import (
	"fmt"
	"log"
	"sync"
	"time"
)

var std = NewDeduplicator(2*time.Second, log.Print)

// Deduplicator collapses identical consecutive log lines into one line with a
// repeat count, flushed after flushDelay of quiet or when a different line arrives.
type Deduplicator struct {
	mu         sync.Mutex
	lastMsg    string
	count      int
	flushDelay time.Duration
	timer      *time.Timer
	print      func(v ...any)
}

func NewDeduplicator(flushDelay time.Duration, print func(v ...any)) *Deduplicator {
	return &Deduplicator{flushDelay: flushDelay, print: print}
}

// Dedup logs through the process-wide deduplicator.
func Dedup(format string, args ...any) {
	std.Printf(format, args...)
}

func (d *Deduplicator) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if msg != d.lastMsg {
		d.flushLocked()
		d.lastMsg = msg
	}
	d.count++

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.flushDelay, d.Flush)
}

// Flush writes any pending line immediately.
func (d *Deduplicator) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()
}

func (d *Deduplicator) flushLocked() {
	if d.count == 0 {
		return
	}
	if d.count == 1 {
		d.print(d.lastMsg)
	} else {
		d.print(fmt.Sprintf("%s (%d)", d.lastMsg, d.count))
	}
	d.count = 0
	d.lastMsg = ""
}
