package cache

import (
	"sync"
	"time"
)

// node 는 최근 사용 순서 목록의 원소다. head 쪽이 가장 최근이다.
type node[K comparable, V any] struct {
	key        K
	value      V
	expiresAt  time.Time
	prev, next *node[K, V]
}

// TTLCache: 항목 수 상한과 고정 TTL 을 가진 LRU 캐시입니다. 여러 고루틴에서 동시에 써도 됩니다.
type TTLCache[K comparable, V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	index    map[K]*node[K, V]
	head     *node[K, V]
	tail     *node[K, V]
	now      func() time.Time
}

// NewTTLCache 는 캐시를 만든다. capacity 와 ttl 은 최소 1, 1초로 보정된다.
func NewTTLCache[K comparable, V any](capacity int, ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:      max(ttl, time.Second),
		capacity: max(capacity, 1),
		index:    make(map[K]*node[K, V]),
		now:      time.Now,
	}
}

// Get 은 만료되지 않은 값을 돌려주고 그 항목을 최근 사용으로 올린다.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.live(key)
	if n == nil {
		var zero V
		return zero, false
	}
	c.toFront(n)
	return n.value, true
}

// Set 은 값을 저장하고 만료 시각을 새로 잡는다.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.index[key]; ok {
		n.value = value
		n.expiresAt = c.now().Add(c.ttl)
		c.toFront(n)
		return
	}
	c.insert(key, value)
}

// Update 는 잠금을 쥔 채로 fn 의 결과를 저장하고 반환한다.
// 살아 있는 항목은 만료 시각을 유지하므로 고정 윈도 카운터로 쓸 수 있다.
func (c *TTLCache[K, V]) Update(key K, fn func(current V, exists bool) V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := c.live(key); n != nil {
		n.value = fn(n.value, true)
		c.toFront(n)
		return n.value
	}
	var zero V
	return c.insert(key, fn(zero, false)).value
}

// Clear 는 모든 항목을 버린다.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.index)
	c.head, c.tail = nil, nil
}

// Len 은 만료됐지만 아직 치워지지 않은 항목까지 센다.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// live 는 만료된 항목을 치우고 살아 있는 항목만 돌려준다. 잠금을 쥔 상태에서 호출한다.
func (c *TTLCache[K, V]) live(key K) *node[K, V] {
	n, ok := c.index[key]
	if !ok {
		return nil
	}
	if !c.now().Before(n.expiresAt) {
		c.remove(n)
		return nil
	}
	return n
}

func (c *TTLCache[K, V]) insert(key K, value V) *node[K, V] {
	n := &node[K, V]{key: key, value: value, expiresAt: c.now().Add(c.ttl)}
	c.index[key] = n
	c.pushFront(n)
	for len(c.index) > c.capacity && c.tail != nil {
		c.remove(c.tail)
	}
	return n
}

func (c *TTLCache[K, V]) remove(n *node[K, V]) {
	c.unlink(n)
	delete(c.index, n.key)
}

func (c *TTLCache[K, V]) toFront(n *node[K, V]) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *TTLCache[K, V]) pushFront(n *node[K, V]) {
	n.prev, n.next = nil, c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *TTLCache[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
