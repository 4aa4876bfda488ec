package identity

import (
	"errors"

	"github.com/olekid/signer-agent/pkg/principal"
)

// Delegated 是基础身份与委托链组合出的可用身份。
// Sender 是链根公钥的自认证 principal，签名仍由基础密钥完成。
type Delegated struct {
	base  Identity
	chain Chain
}

// NewDelegated 组合基础身份与链。
func NewDelegated(base Identity, chain Chain) (*Delegated, error) {
	if base == nil {
		return nil, errors.New("base identity is required")
	}
	if len(chain.Delegations) == 0 {
		return nil, errors.New("delegation chain is empty")
	}
	if len(chain.PublicKey) == 0 {
		return nil, errors.New("delegation chain has no delegating key")
	}
	return &Delegated{base: base, chain: chain}, nil
}

// Sender 返回链根公钥派生的自认证 principal。
func (d *Delegated) Sender() principal.Principal {
	return principal.SelfAuthenticating(d.chain.PublicKey)
}

// PublicKey 返回链根公钥（DER）。
func (d *Delegated) PublicKey() []byte {
	return append([]byte(nil), d.chain.PublicKey...)
}

// Sign 委托给基础身份签名。
func (d *Delegated) Sign(msg []byte) ([]byte, error) {
	return d.base.Sign(msg)
}

// Chain 返回委托链。
func (d *Delegated) Chain() Chain {
	return d.chain
}
