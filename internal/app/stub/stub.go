package stub

import (
	"context"

	"github.com/olekid/signer-agent/internal/agent"
	"github.com/olekid/signer-agent/pkg/apierrors"
	"github.com/olekid/signer-agent/pkg/identity"
	"github.com/olekid/signer-agent/pkg/principal"
)

// Transport 是默认的占位实现，提示使用者需要接入真实的传输层。
type Transport struct{}

// New 返回占位 transport，实现了 agent.Transport 接口。
func New() *Transport { return &Transport{} }

func unavailable() *apierrors.Error {
	return apierrors.New(apierrors.CodeTransportUnavailable, "stub transport: wire a real transport")
}

// Call 当前仅返回占位错误，提醒尚未接入真实实现。
func (Transport) Call(context.Context, principal.Principal, agent.CallOptions, identity.Identity) (agent.CallResult, error) {
	return agent.CallResult{}, unavailable()
}

// Query 当前仅返回占位错误，提醒尚未接入真实实现。
func (Transport) Query(context.Context, principal.Principal, agent.QueryOptions, identity.Identity) (agent.QueryResult, error) {
	return agent.QueryResult{}, unavailable()
}

// ReadState 当前仅返回占位错误，提醒尚未接入真实实现。
func (Transport) ReadState(context.Context, principal.Principal, agent.ReadStateOptions, identity.Identity) ([]byte, error) {
	return nil, unavailable()
}

// CreateReadStateRequest 当前仅返回占位错误，提醒尚未接入真实实现。
func (Transport) CreateReadStateRequest(context.Context, principal.Principal, agent.ReadStateOptions, identity.Identity) (agent.ReadStateRequest, error) {
	return agent.ReadStateRequest{}, unavailable()
}

// FetchRootKey 当前仅返回占位错误，提醒尚未接入真实实现。
func (Transport) FetchRootKey(context.Context) ([]byte, error) {
	return nil, unavailable()
}

// Status 当前仅返回占位错误，提醒尚未接入真实实现。
func (Transport) Status(context.Context) (agent.TransportStatus, error) {
	return agent.TransportStatus{}, unavailable()
}

// ParseCertificate 是占位解析器，接入方需替换为真实的证书格式实现。
func ParseCertificate([]byte) (agent.Certificate, error) {
	return nil, apierrors.New(apierrors.CodeCertificateInvalid, "stub parser: wire a real certificate format")
}
