package identity

import (
	stded25519 "crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/olekid/signer-agent/pkg/principal"
)

// Ed25519 是裸种子基础身份，种子来自注入的随机源。
type Ed25519 struct {
	priv ed25519.PrivateKey
	der  []byte
}

// NewEd25519 使用给定随机源生成身份，rng 为空时退回 crypto/rand。
func NewEd25519(rng io.Reader) (*Ed25519, error) {
	if rng == nil {
		rng = rand.Reader
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rng, seed); err != nil {
		return nil, fmt.Errorf("read ed25519 seed: %w", err)
	}
	return Ed25519FromSeed(seed)
}

// Ed25519FromSeed 从可移植的 32 字节种子还原身份。
func Ed25519FromSeed(seed []byte) (*Ed25519, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("ed25519 seed must be 32 bytes")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	der, err := x509.MarshalPKIXPublicKey(stded25519.PublicKey(pub))
	if err != nil {
		return nil, fmt.Errorf("wrap ed25519 public key: %w", err)
	}
	return &Ed25519{priv: priv, der: der}, nil
}

// Sender 返回由公钥派生的自认证 principal。
func (e *Ed25519) Sender() principal.Principal {
	return principal.SelfAuthenticating(e.der)
}

// PublicKey 返回 DER 包装的公钥。
func (e *Ed25519) PublicKey() []byte {
	return append([]byte(nil), e.der...)
}

// Sign 对消息做 Ed25519 签名。
func (e *Ed25519) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(e.priv, msg), nil
}

// Record 以种子形态持久化。
func (e *Ed25519) Record() (Record, error) {
	return Record{Kind: KindEd25519, Data: e.priv.Seed()}, nil
}
