package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/olekid/signer-agent/pkg/principal"
)

// Delegation 是委托链中的单个条目：被委托的公钥、有效期和可选的目标范围。
type Delegation struct {
	PublicKey  []byte                `json:"pubkey"`
	Expiration time.Time             `json:"expiration"`
	Targets    []principal.Principal `json:"targets,omitempty"`
}

// SignedDelegation 是带签名的委托条目，签名由上一级密钥产生。
type SignedDelegation struct {
	Delegation Delegation `json:"delegation"`
	Signature  []byte     `json:"signature"`
}

// Chain 是有序的委托链加上发起委托的根公钥（DER）。
type Chain struct {
	Delegations []SignedDelegation `json:"delegations"`
	PublicKey   []byte             `json:"publicKey"`
}

// Valid 校验链在 now 时刻、给定目标范围下是否可用。
// 所有条目都必须未过期；配置了范围时，每个限定目标的条目都必须覆盖全部所需目标。
func (c Chain) Valid(targets []principal.Principal, now time.Time) error {
	if len(c.Delegations) == 0 {
		return errors.New("delegation chain is empty")
	}
	if len(c.PublicKey) == 0 {
		return errors.New("delegation chain has no delegating key")
	}
	for i, sd := range c.Delegations {
		if !sd.Delegation.Expiration.After(now) {
			return fmt.Errorf("delegation %d expired at %s", i, sd.Delegation.Expiration.Format(time.RFC3339))
		}
		if len(targets) == 0 || sd.Delegation.Targets == nil {
			continue
		}
		for _, want := range targets {
			if !containsPrincipal(sd.Delegation.Targets, want) {
				return fmt.Errorf("delegation %d does not cover target %s", i, want)
			}
		}
	}
	return nil
}

// SubjectPublicKey 返回链末端条目被委托的公钥。
func (c Chain) SubjectPublicKey() []byte {
	if len(c.Delegations) == 0 {
		return nil
	}
	return c.Delegations[len(c.Delegations)-1].Delegation.PublicKey
}

// MarshalChain 将链编码为存储用的字节。
func MarshalChain(c Chain) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalChain 从存储字节还原链。
func UnmarshalChain(data []byte) (Chain, error) {
	var c Chain
	if err := json.Unmarshal(data, &c); err != nil {
		return Chain{}, fmt.Errorf("decode delegation chain: %w", err)
	}
	return c, nil
}

func containsPrincipal(list []principal.Principal, p principal.Principal) bool {
	for _, candidate := range list {
		if candidate.Equal(p) {
			return true
		}
	}
	return false
}
