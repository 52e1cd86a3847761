package main

import (
	"sync"
	"time"
)

// tickerFactory abstracts time.NewTicker so countdowns can be driven
// manually in tests. It returns the tick channel and a stop function.
type tickerFactory func(interval time.Duration) (<-chan time.Time, func())

func defaultTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// countdown forwards one value per interval into sink until cancelled.
// The value is the countdown itself, so the receiver can discard ticks
// from a handle it no longer considers current. cancel is idempotent;
// once it returns, no further tick from this handle is ever acted on,
// because the room compares handle identity before decrementing.
type countdown struct {
	done       chan struct{}
	once       sync.Once
	stopTicker func()
}

func startTicking(newTicker tickerFactory, interval time.Duration, sink chan<- *countdown) *countdown {
	ticks, stop := newTicker(interval)
	c := &countdown{
		done:       make(chan struct{}),
		stopTicker: stop,
	}

	go func() {
		for {
			select {
			case <-ticks:
				// re-check before forwarding; cancel may have raced
				// the tick
				select {
				case <-c.done:
					return
				default:
				}

				select {
				case sink <- c:
				case <-c.done:
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	return c
}

func (c *countdown) cancel() {
	c.once.Do(func() {
		close(c.done)
		c.stopTicker()
	})
}
