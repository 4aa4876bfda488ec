package remotesigner

import (
	"context"
	"errors"

	"github.com/olekid/signer-agent/pkg/apierrors"
	"github.com/olekid/signer-agent/pkg/identity"
)

var errSignerRequired = errors.New("inner signer is required")

// Stub 是默认的占位实现，提示使用者需要接入真实的 signer 通道。
type Stub struct{}

// NewStub 返回占位 signer。
func NewStub() *Stub { return &Stub{} }

// CallCanister 当前仅返回占位错误，提醒尚未接入真实实现。
func (Stub) CallCanister(context.Context, CallRequest) (SignedCall, error) {
	return SignedCall{}, apierrors.New(apierrors.CodeSignerUnavailable, "stub signer: wire a real signer channel")
}

// GetDelegation 当前仅返回占位错误，提醒尚未接入真实实现。
func (Stub) GetDelegation(context.Context, DelegationRequest) (identity.Chain, error) {
	return identity.Chain{}, apierrors.New(apierrors.CodeSignerUnavailable, "stub signer: wire a real signer channel")
}
