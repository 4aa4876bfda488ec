package delegation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/olekid/signer-agent/internal/infra/remotesigner"
	"github.com/olekid/signer-agent/pkg/identity"
	"github.com/olekid/signer-agent/pkg/principal"
)

// ChainIssuer 定义本包消费的外部 signer 能力子集。
type ChainIssuer interface {
	GetDelegation(ctx context.Context, req remotesigner.DelegationRequest) (identity.Chain, error)
}

// Config 控制 Provisioner 行为。
type Config struct {
	// Identity 是固定身份覆盖，配置后永不缓存、永不生成。
	Identity identity.Identity
	// Targets 限定委托链可用的目标范围，空表示不限。
	Targets []principal.Principal
	// KeyKind 选择按账户生成基础身份时的密钥类型，默认 ECDSA。
	KeyKind identity.Kind
	// Rand 是裸种子身份的随机源，空则退回 crypto/rand。
	Rand    io.Reader
	Clock   Clock
	Metrics *Metrics
	Logger  *slog.Logger
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.KeyKind == "" {
		cfg.KeyKind = identity.KindECDSA
	}
	if cfg.Clock == nil {
		cfg.Clock = NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Provisioner 为账户提供可用的委托身份：基础身份懒生成并缓存，
// 委托链优先复用缓存，失效时向外部 signer 申请一条新链。
type Provisioner struct {
	store  *Store
	issuer ChainIssuer
	cfg    Config

	group singleflight.Group
}

// NewProvisioner 构造 Provisioner。
func NewProvisioner(store *Store, issuer ChainIssuer, cfg Config) (*Provisioner, error) {
	if store == nil {
		return nil, errors.New("delegation store is required")
	}
	if issuer == nil {
		return nil, errors.New("chain issuer is required")
	}
	return &Provisioner{
		store:  store,
		issuer: issuer,
		cfg:    cfg.normalize(),
	}, nil
}

// Targets 返回配置的目标范围，路由层据此决定是否走委托路径。
func (p *Provisioner) Targets() []principal.Principal {
	return p.cfg.Targets
}

// Identity 为账户产出可用的委托身份。
func (p *Provisioner) Identity(ctx context.Context, account principal.Principal) (*identity.Delegated, error) {
	base, err := p.baseIdentity(ctx, account)
	if err != nil {
		return nil, err
	}
	chain, err := p.chain(ctx, account, base.PublicKey())
	if err != nil {
		return nil, err
	}
	return identity.NewDelegated(base, chain)
}

func (p *Provisioner) baseIdentity(ctx context.Context, account principal.Principal) (identity.Identity, error) {
	if p.cfg.Identity != nil {
		return p.cfg.Identity, nil
	}
	cached, ok, err := p.store.BaseIdentity(ctx, account)
	if err != nil {
		return nil, err
	}
	if ok {
		return cached, nil
	}

	var generated identity.Persistable
	switch p.cfg.KeyKind {
	case identity.KindEd25519:
		generated, err = identity.NewEd25519(p.cfg.Rand)
	default:
		generated, err = identity.NewECDSA(p.cfg.Rand)
	}
	if err != nil {
		return nil, fmt.Errorf("generate base identity for %s: %w", account, err)
	}
	if err := p.store.PutBaseIdentity(ctx, account, generated); err != nil {
		return nil, err
	}
	p.cfg.Metrics.incGenerated(string(p.cfg.KeyKind))
	p.cfg.Logger.Info("base identity generated",
		slog.String("account", account.String()),
		slog.String("kind", string(p.cfg.KeyKind)))
	return generated, nil
}

func (p *Provisioner) chain(ctx context.Context, account principal.Principal, publicKey []byte) (identity.Chain, error) {
	now := p.cfg.Clock.Now()
	cached, ok, err := p.store.Chain(ctx, account, publicKey)
	if err != nil {
		return identity.Chain{}, err
	}
	if ok {
		validErr := cached.Valid(p.cfg.Targets, now)
		if validErr == nil {
			p.cfg.Metrics.incCacheHit()
			return cached, nil
		}
		p.cfg.Metrics.incCacheMiss("invalid")
		p.cfg.Logger.Info("cached delegation chain unusable",
			slog.String("account", account.String()),
			slog.String("reason", validErr.Error()))
	} else {
		p.cfg.Metrics.incCacheMiss("absent")
	}

	key := account.String() + "/" + base64.StdEncoding.EncodeToString(publicKey)
	result, err, _ := p.group.Do(key, func() (interface{}, error) {
		return p.issueChain(ctx, account, publicKey)
	})
	if err != nil {
		return identity.Chain{}, err
	}
	return result.(identity.Chain), nil
}

func (p *Provisioner) issueChain(ctx context.Context, account principal.Principal, publicKey []byte) (identity.Chain, error) {
	start := p.cfg.Clock.Now()
	chain, err := p.issuer.GetDelegation(ctx, remotesigner.DelegationRequest{
		Principal: account,
		PublicKey: publicKey,
		Targets:   p.cfg.Targets,
	})
	p.cfg.Metrics.observeIssue(float64(p.cfg.Clock.Now().Sub(start).Milliseconds()), err == nil)
	if err != nil {
		return identity.Chain{}, err
	}
	// 写入 key 由返回的链派生（链根公钥的自认证账户 + 链末端公钥），
	// 与查找 key 的构造刻意不同，保持既有可观测行为。
	owner := principal.SelfAuthenticating(chain.PublicKey)
	if err := p.store.PutChain(ctx, owner, chain.SubjectPublicKey(), chain); err != nil {
		return identity.Chain{}, err
	}
	return chain, nil
}
