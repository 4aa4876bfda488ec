package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/olekid/signer-agent/internal/infra/remotesigner"
	"github.com/olekid/signer-agent/pkg/apierrors"
	"github.com/olekid/signer-agent/pkg/identity"
	"github.com/olekid/signer-agent/pkg/principal"
)

// CallSigner 定义路由层消费的外部 signer 能力子集。
type CallSigner interface {
	CallCanister(ctx context.Context, req remotesigner.CallRequest) (remotesigner.SignedCall, error)
}

// DelegationProvider 定义路由层消费的委托能力。
type DelegationProvider interface {
	// Targets 返回委托链覆盖的目标范围，空表示不限。
	Targets() []principal.Principal
	// Identity 为账户产出可用的委托身份。
	Identity(ctx context.Context, account principal.Principal) (*identity.Delegated, error)
}

// Config 控制 Router 行为。
type Config struct {
	// Account 是发起请求的账户，signer 路径以它作为 sender 校验内容一致性。
	Account principal.Principal
	// RootKey 是验证证书的信任根，为空时首次需要才向传输层拉取并缓存。
	RootKey []byte
	// ParseCertificate 解析 signer 返回的证书字节，必填。
	ParseCertificate CertificateParser
	// Delegation 为空时所有请求都走 signer 路径。
	Delegation DelegationProvider
	Metrics    *Metrics
	Logger     *slog.Logger
}

// Router 按目标把请求分流到委托路径或外部 signer 路径，
// 并维护 request id 到证书化响应或委托标记的对应关系。
// 所有状态都挂在实例上，多个 Router 之间互不可见。
type Router struct {
	transport Transport
	signer    CallSigner
	cfg       Config
	corr      *correlator
	logger    *slog.Logger

	rootMu  sync.Mutex
	rootKey []byte
}

// NewRouter 构造 Router。
func NewRouter(transport Transport, signer CallSigner, cfg Config) (*Router, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if signer == nil {
		return nil, errors.New("call signer is required")
	}
	if cfg.ParseCertificate == nil {
		return nil, errors.New("certificate parser is required")
	}
	if cfg.Account.Empty() {
		return nil, errors.New("account is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		transport: transport,
		signer:    signer,
		cfg:       cfg,
		corr:      newCorrelator(cfg.Metrics),
		logger:    logger,
		rootKey:   cfg.RootKey,
	}, nil
}

// Sender 返回路由使用的账户。
func (r *Router) Sender() principal.Principal {
	return r.cfg.Account
}

// Status 透传底层传输的平台状态。
func (r *Router) Status(ctx context.Context) (TransportStatus, error) {
	return r.transport.Status(ctx)
}

// Call 发起一次更新调用。目标在委托范围内时经传输层直发并标记委托，
// 否则交给外部 signer 代签，缓存证书化响应并返回合成的提交状态。
func (r *Router) Call(ctx context.Context, canister principal.Principal, opts CallOptions) (CallResult, error) {
	if r.delegationCovers(canister) {
		return r.callDelegated(ctx, canister, opts)
	}
	return r.callViaSigner(ctx, canister, opts)
}

func (r *Router) callDelegated(ctx context.Context, canister principal.Principal, opts CallOptions) (CallResult, error) {
	id, err := r.delegatedIdentity(ctx)
	if err != nil {
		return CallResult{}, err
	}
	res, err := r.transport.Call(ctx, canister, opts, id)
	if err != nil {
		return CallResult{}, err
	}
	r.corr.markDelegated(res.RequestID)
	r.cfg.Metrics.incRequest("call", "delegated")
	return res, nil
}

func (r *Router) callViaSigner(ctx context.Context, canister principal.Principal, opts CallOptions) (CallResult, error) {
	signed, err := r.signer.CallCanister(ctx, remotesigner.CallRequest{
		CanisterID: canister,
		Sender:     r.cfg.Account,
		Method:     opts.Method,
		Arg:        opts.Arg,
	})
	if err != nil {
		return CallResult{}, err
	}
	// 内容一致性校验先于 request id 计算：不一致的响应不进缓存。
	if err := validateContent(signed.Content, canister, r.cfg.Account, opts); err != nil {
		r.cfg.Metrics.incViolation()
		r.logger.Warn("signer content mismatch",
			slog.String("canister", canister.String()),
			slog.String("method", opts.Method),
			slog.String("reason", err.Error()))
		return CallResult{}, err
	}
	rid := RequestIDFromContent(signed.Content)
	r.corr.putCertified(rid, signed.Certificate)
	r.cfg.Metrics.incRequest("call", "signer")
	return CallResult{RequestID: rid, Status: StatusSubmitted}, nil
}

// Query 发起一次查询。目标在委托范围内时直接走传输层查询；
// 否则升级为 signer 代签的更新调用，就地消费证书并抽取回复。
func (r *Router) Query(ctx context.Context, canister principal.Principal, opts QueryOptions) (QueryResult, error) {
	if r.delegationCovers(canister) {
		id, err := r.delegatedIdentity(ctx)
		if err != nil {
			return QueryResult{}, err
		}
		r.cfg.Metrics.incRequest("query", "delegated")
		return r.transport.Query(ctx, canister, opts, id)
	}

	r.cfg.Metrics.incUpgrade()
	res, err := r.callViaSigner(ctx, canister, CallOptions(opts))
	if err != nil {
		return QueryResult{}, err
	}
	raw, ok := r.corr.takeCertified(res.RequestID)
	if !ok {
		return QueryResult{}, apierrors.New(apierrors.CodeMissingCorrelation,
			"certified response missing after upgraded call").WithRequestID(res.RequestID.String())
	}
	r.cfg.Metrics.incRequest("query", "signer")
	return r.resolveCertified(ctx, canister, res.RequestID, raw)
}

func (r *Router) resolveCertified(ctx context.Context, canister principal.Principal, rid RequestID, raw []byte) (QueryResult, error) {
	cert, err := r.cfg.ParseCertificate(raw)
	if err != nil {
		return QueryResult{}, apierrors.New(apierrors.CodeCertificateInvalid,
			fmt.Sprintf("parse certificate: %v", err)).WithRequestID(rid.String())
	}
	rootKey, err := r.resolveRootKey(ctx)
	if err != nil {
		return QueryResult{}, err
	}
	if err := cert.Verify(rootKey, canister); err != nil {
		return QueryResult{}, apierrors.New(apierrors.CodeCertificateInvalid,
			fmt.Sprintf("verify certificate: %v", err)).WithRequestID(rid.String())
	}

	status, ok := cert.Lookup(statusPath(rid))
	if !ok {
		return QueryResult{}, apierrors.New(apierrors.CodeNotReplied,
			"request status absent from certificate").WithRequestID(rid.String())
	}
	if string(status) != StatusReplied {
		return QueryResult{}, apierrors.New(apierrors.CodeNotReplied,
			fmt.Sprintf("request status %q", status)).WithRequestID(rid.String())
	}
	reply, ok := cert.Lookup(replyPath(rid))
	if !ok {
		return QueryResult{}, apierrors.New(apierrors.CodeNotReplied,
			"reply absent from certificate").WithRequestID(rid.String())
	}
	return QueryResult{Status: StatusReplied, Reply: reply}, nil
}

// ReadState 处理状态读取。路径必须恰好编码一个请求状态查询；
// 带委托标记的请求经传输层转发，否则消费缓存的证书化响应。
func (r *Router) ReadState(ctx context.Context, canister principal.Principal, opts ReadStateOptions) ([]byte, error) {
	rid, ok := requestIDFromPaths(opts.Paths)
	if !ok {
		return nil, apierrors.New(apierrors.CodeInvalidReadState,
			"read_state paths do not encode a request status lookup")
	}
	if r.corr.takeDelegated(rid) {
		id, err := r.delegatedIdentity(ctx)
		if err != nil {
			return nil, err
		}
		r.cfg.Metrics.incRequest("read_state", "delegated")
		return r.transport.ReadState(ctx, canister, opts, id)
	}
	raw, ok := r.corr.takeCertified(rid)
	if !ok {
		return nil, apierrors.New(apierrors.CodeMissingCorrelation,
			"request unknown or already consumed").WithRequestID(rid.String())
	}
	r.cfg.Metrics.incRequest("read_state", "signer")
	return raw, nil
}

// CreateReadStateRequest 预构造一个 read_state 请求但不消费任何状态。
// 带委托标记的请求由传输层签好信封，其余请求返回只含路径的空壳，
// 留待 ReadState 时从缓存取证书。
func (r *Router) CreateReadStateRequest(ctx context.Context, canister principal.Principal, opts ReadStateOptions) (ReadStateRequest, error) {
	rid, ok := requestIDFromPaths(opts.Paths)
	if !ok {
		return ReadStateRequest{}, apierrors.New(apierrors.CodeInvalidReadState,
			"read_state paths do not encode a request status lookup")
	}
	if r.corr.peekDelegated(rid) {
		id, err := r.delegatedIdentity(ctx)
		if err != nil {
			return ReadStateRequest{}, err
		}
		return r.transport.CreateReadStateRequest(ctx, canister, opts, id)
	}
	return ReadStateRequest{Paths: opts.Paths}, nil
}

// delegationCovers 判断目标是否在委托范围内。未配置委托时恒为 false，
// 配置了委托但目标范围为空时视为覆盖一切。
func (r *Router) delegationCovers(canister principal.Principal) bool {
	if r.cfg.Delegation == nil {
		return false
	}
	targets := r.cfg.Delegation.Targets()
	if len(targets) == 0 {
		return true
	}
	for _, t := range targets {
		if t.Equal(canister) {
			return true
		}
	}
	return false
}

func (r *Router) delegatedIdentity(ctx context.Context) (identity.Identity, error) {
	id, err := r.cfg.Delegation.Identity(ctx, r.cfg.Account)
	if err != nil {
		if _, ok := apierrors.FromError(err); ok {
			return nil, err
		}
		return nil, apierrors.New(apierrors.CodeDelegationUnavailable,
			fmt.Sprintf("provision delegated identity: %v", err))
	}
	return id, nil
}

func (r *Router) resolveRootKey(ctx context.Context) ([]byte, error) {
	r.rootMu.Lock()
	defer r.rootMu.Unlock()
	if len(r.rootKey) > 0 {
		return r.rootKey, nil
	}
	key, err := r.transport.FetchRootKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch root key: %w", err)
	}
	r.rootKey = key
	r.logger.Info("root key fetched", slog.Int("bytes", len(key)))
	return key, nil
}

func validateContent(c remotesigner.Content, canister, sender principal.Principal, opts CallOptions) error {
	mismatch := func(field string) error {
		return apierrors.New(apierrors.CodeProtocolViolation,
			fmt.Sprintf("signer content mismatch: %s", field))
	}
	if c.RequestType != "call" {
		return mismatch("request type")
	}
	if !c.CanisterID.Equal(canister) {
		return mismatch("canister id")
	}
	if c.Method != opts.Method {
		return mismatch("method name")
	}
	if !bytes.Equal(c.Arg, opts.Arg) {
		return mismatch("arg")
	}
	if !c.Sender.Equal(sender) {
		return mismatch("sender")
	}
	return nil
}

func statusPath(rid RequestID) [][]byte {
	return [][]byte{[]byte("request_status"), rid.Bytes(), []byte("status")}
}

func replyPath(rid RequestID) [][]byte {
	return [][]byte{[]byte("request_status"), rid.Bytes(), []byte("reply")}
}

// requestIDFromPaths 从 read_state 路径集合中抽取 request id：
// 必须恰好一条路径、恰好两段、首段是字面量 request_status、次段长度正确。
func requestIDFromPaths(paths [][][]byte) (RequestID, bool) {
	var rid RequestID
	if len(paths) != 1 {
		return rid, false
	}
	path := paths[0]
	if len(path) != 2 {
		return rid, false
	}
	if !bytes.Equal(path[0], []byte("request_status")) {
		return rid, false
	}
	if len(path[1]) != len(rid) {
		return rid, false
	}
	copy(rid[:], path[1])
	return rid, true
}
