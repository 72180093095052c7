package aireview

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/joescharf/crit/internal/models"
)

// resultCache is a bounded in-memory LRU of review results keyed by
// content fingerprint. The bound is deliberate: review results are
// accumulated for the life of the process otherwise.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key    string
	result *models.AIReviewResult
}

func newResultCache(capacity int) *resultCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &resultCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// cacheKey hashes the full review identity: reviewer config, language,
// caller context, and file content. Changing any of them is a miss.
func cacheKey(fingerprint, language, context, content string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", fingerprint, language, context, content)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// get returns a copy of the cached result so callers can't mutate the
// stored one.
func (c *resultCache) get(key string) (*models.AIReviewResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return copyResult(el.Value.(*cacheEntry).result), true
}

func (c *resultCache) put(key string, result *models.AIReviewResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).result = copyResult(result)
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, result: copyResult(result)})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func copyResult(r *models.AIReviewResult) *models.AIReviewResult {
	cp := *r
	cp.Findings = append([]models.AIFinding(nil), r.Findings...)
	cp.Recommendations = append([]string(nil), r.Recommendations...)
	cp.Strengths = append([]string(nil), r.Strengths...)
	cp.Weaknesses = append([]string(nil), r.Weaknesses...)
	cp.CategoryScores = make(map[models.FindingCategory]float64, len(r.CategoryScores))
	for k, v := range r.CategoryScores {
		cp.CategoryScores[k] = v
	}
	return &cp
}
