package agentapi

import (
	"context"

	"github.com/olekid/signer-agent/internal/agent"
	"github.com/olekid/signer-agent/pkg/principal"
)

// Backend 是 HTTP 层消费的路由能力，由 agent.Router 实现。
type Backend interface {
	Call(ctx context.Context, canister principal.Principal, opts agent.CallOptions) (agent.CallResult, error)
	Query(ctx context.Context, canister principal.Principal, opts agent.QueryOptions) (agent.QueryResult, error)
	ReadState(ctx context.Context, canister principal.Principal, opts agent.ReadStateOptions) ([]byte, error)
	CreateReadStateRequest(ctx context.Context, canister principal.Principal, opts agent.ReadStateOptions) (agent.ReadStateRequest, error)
	Status(ctx context.Context) (agent.TransportStatus, error)
}
