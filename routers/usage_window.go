package routers

import "time"

// usageBucketCount is the resolution of a sliding usage window.
const usageBucketCount = 60

type usageBucket struct {
	index    int64
	requests uint64
	tokens   uint64
}

// usageWindow keeps request and token counts in time buckets so that rpm/tpm
// decay instead of growing forever. Callers hold the registry lock.
type usageWindow struct {
	width   time.Duration
	buckets [usageBucketCount]usageBucket
}

func newUsageWindow(window time.Duration) *usageWindow {
	width := window / usageBucketCount
	if width <= 0 {
		width = time.Nanosecond
	}
	return &usageWindow{width: width}
}

func (w *usageWindow) bucketIndex(now time.Time) int64 {
	return now.UnixNano() / int64(w.width)
}

func (w *usageWindow) add(now time.Time, requests, tokens uint64) {
	idx := w.bucketIndex(now)
	slot := ((idx % usageBucketCount) + usageBucketCount) % usageBucketCount
	b := &w.buckets[slot]
	if b.index != idx {
		*b = usageBucket{index: idx}
	}
	b.requests = saturatingAdd(b.requests, requests)
	b.tokens = saturatingAdd(b.tokens, tokens)
}

// totals sums the buckets that still fall inside the window at now.
func (w *usageWindow) totals(now time.Time) (requests, tokens uint64) {
	current := w.bucketIndex(now)
	oldest := current - usageBucketCount + 1
	for i := range w.buckets {
		b := &w.buckets[i]
		if b.index < oldest || b.index > current {
			continue
		}
		requests = saturatingAdd(requests, b.requests)
		tokens = saturatingAdd(tokens, b.tokens)
	}
	return requests, tokens
}
