package replyroute

import "sync/atomic"

// RouterStats contains statistics about reply routing.
// Snapshots are safe to take from any goroutine while the router runs.
//
// For Prometheus integration, expose these as:
//   - Counters: Admitted, Passthrough, Promoted, Routed, Completed, Timeouts, Abandoned, Dropped, Flushed
//   - Gauges: Pending, Active
type RouterStats struct {
	Admitted    uint64 // Client commands queued for routing
	Passthrough uint64 // Client commands left to default handling
	Promoted    uint64 // Requests sent upstream as the active exchange
	Routed      uint64 // Server lines delivered to a single client
	Completed   uint64 // Exchanges ended by a terminal reply
	Timeouts    uint64 // Exchanges abandoned by the timeout
	Abandoned   uint64 // Exchanges dropped because their client left
	Dropped     uint64 // Queued requests discarded on disconnect
	Flushed     uint64 // Queued requests sent unrouted at shutdown

	Pending int64 // Requests waiting in the queue
	Active  int64 // 1 while an exchange is in flight
}

// routerStatsCollector provides internal methods for updating router stats.
// Not exported - the router updates its own stats.
type routerStatsCollector struct {
	stats RouterStats
}

func newRouterStatsCollector() *routerStatsCollector {
	return &routerStatsCollector{}
}

func (c *routerStatsCollector) recordAdmit() {
	atomic.AddUint64(&c.stats.Admitted, 1)
}

func (c *routerStatsCollector) recordPassthrough() {
	atomic.AddUint64(&c.stats.Passthrough, 1)
}

func (c *routerStatsCollector) recordPromote() {
	atomic.AddUint64(&c.stats.Promoted, 1)
	atomic.StoreInt64(&c.stats.Active, 1)
}

func (c *routerStatsCollector) recordRouted() {
	atomic.AddUint64(&c.stats.Routed, 1)
}

func (c *routerStatsCollector) recordComplete() {
	atomic.AddUint64(&c.stats.Completed, 1)
	atomic.StoreInt64(&c.stats.Active, 0)
}

func (c *routerStatsCollector) recordTimeout() {
	atomic.AddUint64(&c.stats.Timeouts, 1)
	atomic.StoreInt64(&c.stats.Active, 0)
}

func (c *routerStatsCollector) recordAbandon() {
	atomic.AddUint64(&c.stats.Abandoned, 1)
	atomic.StoreInt64(&c.stats.Active, 0)
}

func (c *routerStatsCollector) recordIdle() {
	atomic.StoreInt64(&c.stats.Active, 0)
}

func (c *routerStatsCollector) recordDropped(n int) {
	atomic.AddUint64(&c.stats.Dropped, uint64(n))
}

func (c *routerStatsCollector) recordFlushed() {
	atomic.AddUint64(&c.stats.Flushed, 1)
}

func (c *routerStatsCollector) setPending(n int) {
	atomic.StoreInt64(&c.stats.Pending, int64(n))
}

func (c *routerStatsCollector) snapshot() RouterStats {
	return RouterStats{
		Admitted:    atomic.LoadUint64(&c.stats.Admitted),
		Passthrough: atomic.LoadUint64(&c.stats.Passthrough),
		Promoted:    atomic.LoadUint64(&c.stats.Promoted),
		Routed:      atomic.LoadUint64(&c.stats.Routed),
		Completed:   atomic.LoadUint64(&c.stats.Completed),
		Timeouts:    atomic.LoadUint64(&c.stats.Timeouts),
		Abandoned:   atomic.LoadUint64(&c.stats.Abandoned),
		Dropped:     atomic.LoadUint64(&c.stats.Dropped),
		Flushed:     atomic.LoadUint64(&c.stats.Flushed),
		Pending:     atomic.LoadInt64(&c.stats.Pending),
		Active:      atomic.LoadInt64(&c.stats.Active),
	}
}
