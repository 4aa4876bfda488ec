package remotesigner

import (
	"sync"
	"time"
)

// breakerState 表示 signer 通道当前健康状况。
type breakerState string

const (
	stateHealthy  breakerState = "healthy"
	stateDegraded breakerState = "degraded"
)

// circuitBreaker 按连续失败次数降级，冷却后自动恢复。
type circuitBreaker struct {
	threshold int
	cooldown  time.Duration

	mu         sync.Mutex
	state      breakerState
	failures   int
	lastChange time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold:  threshold,
		cooldown:   cooldown,
		state:      stateHealthy,
		lastChange: time.Now(),
	}
}

func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateDegraded {
		if time.Since(cb.lastChange) <= cb.cooldown {
			return false
		}
		cb.state = stateHealthy
		cb.failures = 0
		cb.lastChange = time.Now()
	}
	return true
}

func (cb *circuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	if cb.state != stateHealthy {
		cb.state = stateHealthy
		cb.lastChange = time.Now()
	}
}

func (cb *circuitBreaker) Failure() (tripped bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.threshold && cb.state == stateHealthy {
		cb.state = stateDegraded
		cb.lastChange = time.Now()
		return true
	}
	return false
}

func (cb *circuitBreaker) State() breakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
