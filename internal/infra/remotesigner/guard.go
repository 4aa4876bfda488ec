package remotesigner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/olekid/signer-agent/pkg/apierrors"
	"github.com/olekid/signer-agent/pkg/identity"
)

// GuardConfig 控制限流与熔断行为。
type GuardConfig struct {
	// RateLimit 是每秒允许的 signer 交互次数，0 表示不限流。
	RateLimit float64
	RateBurst int
	// BreakerThreshold 是触发降级的连续失败次数。
	BreakerThreshold int
	BreakerCooldown  time.Duration
	Logger           *slog.Logger
	Metrics          *Metrics
}

func (c *GuardConfig) normalize() GuardConfig {
	cfg := *c
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Guard 包装任意 Signer，提供限流、熔断和指标。
// 本层不做重试：被限流或熔断的请求直接以 SIGNER_UNAVAILABLE 失败。
type Guard struct {
	inner   Signer
	cfg     GuardConfig
	limiter *rate.Limiter
	breaker *circuitBreaker
	metrics *Metrics
	logger  *slog.Logger
}

// NewGuard 构造包装器。
func NewGuard(inner Signer, cfg GuardConfig) (*Guard, error) {
	if inner == nil {
		return nil, errSignerRequired
	}
	normalized := cfg.normalize()
	g := &Guard{
		inner:   inner,
		cfg:     normalized,
		breaker: newCircuitBreaker(normalized.BreakerThreshold, normalized.BreakerCooldown),
		metrics: normalized.Metrics,
		logger:  normalized.Logger,
	}
	if normalized.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(normalized.RateLimit), normalized.RateBurst)
	}
	return g, nil
}

// CallCanister 透传到内层 signer。
func (g *Guard) CallCanister(ctx context.Context, req CallRequest) (SignedCall, error) {
	if err := g.admit("call_canister"); err != nil {
		return SignedCall{}, err
	}
	start := time.Now()
	signed, err := g.inner.CallCanister(ctx, req)
	g.settle("call_canister", start, err)
	return signed, err
}

// GetDelegation 透传到内层 signer。
func (g *Guard) GetDelegation(ctx context.Context, req DelegationRequest) (identity.Chain, error) {
	if err := g.admit("get_delegation"); err != nil {
		return identity.Chain{}, err
	}
	start := time.Now()
	chain, err := g.inner.GetDelegation(ctx, req)
	g.settle("get_delegation", start, err)
	return chain, err
}

func (g *Guard) admit(op string) error {
	if !g.breaker.Allow() {
		g.metrics.incRejected(op, "breaker")
		return apierrors.New(apierrors.CodeSignerUnavailable, "signer circuit open")
	}
	if g.limiter != nil && !g.limiter.Allow() {
		g.metrics.incRejected(op, "rate")
		return apierrors.New(apierrors.CodeSignerUnavailable, "signer rate limited")
	}
	return nil
}

func (g *Guard) settle(op string, start time.Time, err error) {
	g.metrics.observeCall(op, float64(time.Since(start).Milliseconds()), err == nil)
	if err == nil {
		g.breaker.Success()
		return
	}
	if tripped := g.breaker.Failure(); tripped && g.logger != nil {
		g.logger.Warn("signer circuit degraded", slog.String("op", op), slog.Any("err", err))
	}
}
