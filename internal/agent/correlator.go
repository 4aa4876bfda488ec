package agent

import "sync"

// correlator 维护 request id 到待取结果的对应关系。
// 同一个 id 在任意时刻至多处于一种状态：要么缓存了证书化响应，
// 要么带委托标记，写入任一状态都会清掉另一种。两种记录都是一次性的。
type correlator struct {
	mu        sync.Mutex
	certified map[RequestID][]byte
	delegated map[RequestID]struct{}
	metrics   *Metrics
}

func newCorrelator(metrics *Metrics) *correlator {
	return &correlator{
		certified: make(map[RequestID][]byte),
		delegated: make(map[RequestID]struct{}),
		metrics:   metrics,
	}
}

func (c *correlator) putCertified(id RequestID, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.delegated, id)
	c.certified[id] = raw
	c.metrics.setPending(len(c.certified), len(c.delegated))
}

func (c *correlator) takeCertified(id RequestID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.certified[id]
	if !ok {
		return nil, false
	}
	delete(c.certified, id)
	c.metrics.setPending(len(c.certified), len(c.delegated))
	return raw, true
}

func (c *correlator) markDelegated(id RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.certified, id)
	c.delegated[id] = struct{}{}
	c.metrics.setPending(len(c.certified), len(c.delegated))
}

// peekDelegated 只判断不消费，预构造 read_state 请求时使用。
func (c *correlator) peekDelegated(id RequestID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.delegated[id]
	return ok
}

func (c *correlator) takeDelegated(id RequestID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.delegated[id]; !ok {
		return false
	}
	delete(c.delegated, id)
	c.metrics.setPending(len(c.certified), len(c.delegated))
	return true
}
