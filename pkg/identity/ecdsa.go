package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/olekid/signer-agent/pkg/principal"
)

// ECDSA 是平台密钥基础身份（P-256），默认类型。
type ECDSA struct {
	priv *ecdsa.PrivateKey
	der  []byte
	rng  io.Reader
}

// NewECDSA 使用给定随机源生成身份，rng 为空时退回 crypto/rand。
func NewECDSA(rng io.Reader) (*ECDSA, error) {
	if rng == nil {
		rng = rand.Reader
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rng)
	if err != nil {
		return nil, fmt.Errorf("generate ecdsa key: %w", err)
	}
	return newECDSA(priv, rng)
}

// ECDSAFromDER 从不透明的 SEC1 DER 句柄还原身份。
func ECDSAFromDER(der []byte) (*ECDSA, error) {
	priv, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse ecdsa key handle: %w", err)
	}
	return newECDSA(priv, rand.Reader)
}

func newECDSA(priv *ecdsa.PrivateKey, rng io.Reader) (*ECDSA, error) {
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("wrap ecdsa public key: %w", err)
	}
	return &ECDSA{priv: priv, der: der, rng: rng}, nil
}

// Sender 返回由公钥派生的自认证 principal。
func (e *ECDSA) Sender() principal.Principal {
	return principal.SelfAuthenticating(e.der)
}

// PublicKey 返回 DER 包装的公钥。
func (e *ECDSA) PublicKey() []byte {
	return append([]byte(nil), e.der...)
}

// Sign 对消息的 SHA-256 摘要做 ASN.1 ECDSA 签名。
func (e *ECDSA) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig, err := ecdsa.SignASN1(e.rng, e.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}
	return sig, nil
}

// Record 以 SEC1 DER 句柄形态持久化。
func (e *ECDSA) Record() (Record, error) {
	der, err := x509.MarshalECPrivateKey(e.priv)
	if err != nil {
		return Record{}, fmt.Errorf("marshal ecdsa key handle: %w", err)
	}
	return Record{Kind: KindECDSA, Data: der}, nil
}
