// Package coarsetime is a clock for timestamps taken on every line read.
// It is refreshed every 50ms by a background ticker, so readings may lag
// the real time by up to one tick.
package coarsetime

import (
	"sync/atomic"
	"time"
)

const tick = 50 * time.Millisecond

var now atomic.Int64

func init() {
	now.Store(time.Now().UnixNano())

	ticker := time.NewTicker(tick)
	go func() {
		for t := range ticker.C {
			now.Store(t.UnixNano())
		}
	}()
}

// Now returns the coarse current time.
func Now() time.Time {
	return time.Unix(0, now.Load())
}

// Since returns the time elapsed since t on the coarse clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
