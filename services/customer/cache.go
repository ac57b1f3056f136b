package customer

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	orderCacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "customer_order_cache_hits_total"})
	orderCacheMiss = prometheus.NewCounter(prometheus.CounterOpts{Name: "customer_order_cache_miss_total"})
	directorySize  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "customer_directory_size"})
	directoryLoads = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "customer_directory_loads_total"}, []string{"mode"})
)

func init() {
	prometheus.MustRegister(orderCacheHits, orderCacheMiss, directorySize, directoryLoads)
}

type orderEntry struct {
	orders    []Order
	fetchedAt time.Time
}

// orderCache keeps paid orders per email for a short TTL.
type orderCache struct {
	mu    sync.RWMutex
	items map[string]orderEntry
	ttl   time.Duration
}

func newOrderCache(ttl time.Duration) *orderCache {
	return &orderCache{items: make(map[string]orderEntry), ttl: ttl}
}

func (c *orderCache) Get(email string) ([]Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[email]
	if !ok || (c.ttl > 0 && time.Since(v.fetchedAt) > c.ttl) {
		orderCacheMiss.Inc()
		return nil, false
	}
	orderCacheHits.Inc()
	return v.orders, true
}

func (c *orderCache) Set(email string, orders []Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[email] = orderEntry{orders: orders, fetchedAt: time.Now()}
}

func (c *orderCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]orderEntry)
	return n
}
