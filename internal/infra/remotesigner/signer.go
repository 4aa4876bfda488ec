package remotesigner

import (
	"context"

	"github.com/olekid/signer-agent/pkg/identity"
	"github.com/olekid/signer-agent/pkg/principal"
)

// CallRequest 描述一次希望外部 signer 代签并认证的调用。
type CallRequest struct {
	CanisterID principal.Principal
	Sender     principal.Principal
	Method     string
	Arg        []byte
}

// Content 是 signer 返回的规范化调用内容，路由层据此做一致性校验并计算 request id。
type Content struct {
	RequestType   string
	Sender        principal.Principal
	CanisterID    principal.Principal
	Method        string
	Arg           []byte
	IngressExpiry uint64
	Nonce         []byte
}

// SignedCall 是 signer 代签的结果：内容加上已认证的证书字节。
type SignedCall struct {
	Content     Content
	Certificate []byte
}

// DelegationRequest 描述一次委托链签发请求。
type DelegationRequest struct {
	Principal principal.Principal
	PublicKey []byte
	Targets   []principal.Principal
}

// Signer 是外部 signer 服务的能力边界，线上实现由接入方提供。
type Signer interface {
	// CallCanister 请求 signer 代签并认证一次调用。
	CallCanister(ctx context.Context, req CallRequest) (SignedCall, error)
	// GetDelegation 请求 signer 签发一条委托链。
	GetDelegation(ctx context.Context, req DelegationRequest) (identity.Chain, error)
}
