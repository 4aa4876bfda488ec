package agent

import (
	"context"

	"github.com/olekid/signer-agent/pkg/identity"
	"github.com/olekid/signer-agent/pkg/principal"
)

// StatusSubmitted 是 signer 路径返回的合成提交状态，不承载 HTTP 语义。
const StatusSubmitted = "submitted"

// StatusReplied 是查询升级路径成功时的状态字面量。
const StatusReplied = "replied"

// CallOptions 描述一次 call 的方法与参数。
type CallOptions struct {
	Method string
	Arg    []byte
}

// QueryOptions 描述一次 query 的方法与参数。
type QueryOptions struct {
	Method string
	Arg    []byte
}

// ReadStateOptions 携带 read_state 的路径集合。
type ReadStateOptions struct {
	Paths [][][]byte
}

// CallResult 是 call 的结果：request id 加状态。
type CallResult struct {
	RequestID RequestID
	Status    string
}

// QueryResult 是 query 的结果。
type QueryResult struct {
	Status string
	Reply  []byte
}

// ReadStateRequest 是预签名的 read_state 请求，Envelope 对本层不透明。
type ReadStateRequest struct {
	Paths    [][][]byte
	Envelope []byte
}

// TransportStatus 是底层传输报告的目标平台状态。
type TransportStatus struct {
	RootKey []byte
	Version string
}

// Transport 是底层传输能力，委托路径的请求直接经由它发出。
type Transport interface {
	Call(ctx context.Context, canister principal.Principal, opts CallOptions, id identity.Identity) (CallResult, error)
	Query(ctx context.Context, canister principal.Principal, opts QueryOptions, id identity.Identity) (QueryResult, error)
	ReadState(ctx context.Context, canister principal.Principal, opts ReadStateOptions, id identity.Identity) ([]byte, error)
	CreateReadStateRequest(ctx context.Context, canister principal.Principal, opts ReadStateOptions, id identity.Identity) (ReadStateRequest, error)
	FetchRootKey(ctx context.Context) ([]byte, error)
	Status(ctx context.Context) (TransportStatus, error)
}
