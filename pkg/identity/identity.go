package identity

import (
	"fmt"

	"github.com/olekid/signer-agent/pkg/principal"
)

// Identity 是能对请求签名的身份。PublicKey 返回 DER 包装的公钥。
type Identity interface {
	Sender() principal.Principal
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

// Kind 标识基础身份的密钥类型。
type Kind string

const (
	// KindECDSA 是平台密钥类型（P-256），持久化为不透明的 DER 句柄。
	KindECDSA Kind = "ECDSA"
	// KindEd25519 是裸种子类型，持久化为可移植的 32 字节种子。
	KindEd25519 Kind = "Ed25519"
)

// Record 是基础身份的持久化形态，每种类型自行决定 Data 的含义。
type Record struct {
	Kind Kind   `json:"kind"`
	Data []byte `json:"data"`
}

// Persistable 由可持久化的基础身份实现。
type Persistable interface {
	Identity
	Record() (Record, error)
}

// FromRecord 根据 Record 还原基础身份。
func FromRecord(rec Record) (Identity, error) {
	switch rec.Kind {
	case KindECDSA:
		return ECDSAFromDER(rec.Data)
	case KindEd25519:
		return Ed25519FromSeed(rec.Data)
	default:
		return nil, fmt.Errorf("unknown identity kind %q", rec.Kind)
	}
}
