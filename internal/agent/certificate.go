package agent

import "github.com/olekid/signer-agent/pkg/principal"

// Certificate 是已签名状态树的能力边界：验证签名并按路径取值。
// 具体的证书格式与签名方案由接入方实现。
type Certificate interface {
	// Verify 用给定的信任根公钥校验证书对目标账户是否有效。
	Verify(rootKey []byte, canister principal.Principal) error
	// Lookup 按路径取值，路径不存在时第二个返回值为 false。
	Lookup(path [][]byte) ([]byte, bool)
}

// CertificateParser 将证书字节解析为 Certificate。
type CertificateParser func(raw []byte) (Certificate, error)
