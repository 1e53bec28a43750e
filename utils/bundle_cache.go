package utils

// A bounded FIFO set of submitted bundle IDs
type BundleCache struct {
	set      map[string]struct{}
	order    []string
	capacity int
}

const DefaultBundleCacheCapacity = 100000

func NewBundleCache(capacity int) *BundleCache {
	if capacity <= 0 {
		capacity = DefaultBundleCacheCapacity
	}
	return &BundleCache{
		set:      make(map[string]struct{}),
		capacity: capacity,
		order:    make([]string, 0, min(capacity, 1024)),
	}
}

func (c *BundleCache) Has(bundleId string) bool {
	_, exists := c.set[bundleId]
	return exists
}

func (c *BundleCache) Add(bundleId string) {
	if c.Has(bundleId) {
		return
	}
	if len(c.order) >= c.capacity {
		old := c.order[0]
		c.order = c.order[1:]
		delete(c.set, old)
	}
	c.set[bundleId] = struct{}{}
	c.order = append(c.order, bundleId)
}

func (c *BundleCache) Len() int {
	return len(c.set)
}

// Recent returns up to n of the most recently added IDs, newest first.
func (c *BundleCache) Recent(n int) []string {
	if n > len(c.order) {
		n = len(c.order)
	}
	out := make([]string, 0, n)
	for i := len(c.order) - 1; i >= len(c.order)-n; i-- {
		out = append(out, c.order[i])
	}
	return out
}
