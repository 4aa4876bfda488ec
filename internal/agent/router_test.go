package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olekid/signer-agent/internal/infra/remotesigner"
	"github.com/olekid/signer-agent/pkg/apierrors"
	"github.com/olekid/signer-agent/pkg/identity"
	"github.com/olekid/signer-agent/pkg/principal"
)

type fixedReader struct{ b byte }

func (r fixedReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
	}
	return len(p), nil
}

// fakeTransport records the identity each operation was handed.
type fakeTransport struct {
	callResult    CallResult
	queryResult   QueryResult
	readStateBody []byte
	rootKey       []byte

	rootKeyCalls atomic.Int64
	lastIdentity identity.Identity
	readCalls    atomic.Int64
}

func (f *fakeTransport) Call(_ context.Context, _ principal.Principal, _ CallOptions, id identity.Identity) (CallResult, error) {
	f.lastIdentity = id
	return f.callResult, nil
}

func (f *fakeTransport) Query(_ context.Context, _ principal.Principal, _ QueryOptions, id identity.Identity) (QueryResult, error) {
	f.lastIdentity = id
	return f.queryResult, nil
}

func (f *fakeTransport) ReadState(_ context.Context, _ principal.Principal, _ ReadStateOptions, id identity.Identity) ([]byte, error) {
	f.lastIdentity = id
	f.readCalls.Add(1)
	return f.readStateBody, nil
}

func (f *fakeTransport) CreateReadStateRequest(_ context.Context, _ principal.Principal, opts ReadStateOptions, id identity.Identity) (ReadStateRequest, error) {
	f.lastIdentity = id
	return ReadStateRequest{Paths: opts.Paths, Envelope: []byte("signed")}, nil
}

func (f *fakeTransport) FetchRootKey(context.Context) ([]byte, error) {
	f.rootKeyCalls.Add(1)
	return f.rootKey, nil
}

func (f *fakeTransport) Status(context.Context) (TransportStatus, error) {
	return TransportStatus{RootKey: f.rootKey, Version: "0.1"}, nil
}

// fakeCallSigner echoes the request back as signed content.
type fakeCallSigner struct {
	calls       atomic.Int64
	certificate []byte
	mutate      func(*remotesigner.Content)
}

func (f *fakeCallSigner) CallCanister(_ context.Context, req remotesigner.CallRequest) (remotesigner.SignedCall, error) {
	f.calls.Add(1)
	content := remotesigner.Content{
		RequestType:   "call",
		Sender:        req.Sender,
		CanisterID:    req.CanisterID,
		Method:        req.Method,
		Arg:           req.Arg,
		IngressExpiry: 42,
	}
	if f.mutate != nil {
		f.mutate(&content)
	}
	return remotesigner.SignedCall{Content: content, Certificate: f.certificate}, nil
}

type fakeProvider struct {
	targets []principal.Principal
	id      *identity.Delegated
	err     error
}

func (f *fakeProvider) Targets() []principal.Principal { return f.targets }

func (f *fakeProvider) Identity(context.Context, principal.Principal) (*identity.Delegated, error) {
	return f.id, f.err
}

// fakeCertificate serves lookups from a path-joined map.
type fakeCertificate struct {
	verifyErr error
	values    map[string][]byte
}

func (c *fakeCertificate) Verify([]byte, principal.Principal) error { return c.verifyErr }

func (c *fakeCertificate) Lookup(path [][]byte) ([]byte, bool) {
	segs := make([]string, len(path))
	for i, s := range path {
		segs[i] = string(s)
	}
	v, ok := c.values[strings.Join(segs, "/")]
	return v, ok
}

func testDelegated(t *testing.T) *identity.Delegated {
	t.Helper()
	base, err := identity.NewEd25519(fixedReader{b: 0x01})
	require.NoError(t, err)
	root, err := identity.NewEd25519(fixedReader{b: 0x02})
	require.NoError(t, err)
	chain := identity.Chain{
		PublicKey: root.PublicKey(),
		Delegations: []identity.SignedDelegation{{
			Delegation: identity.Delegation{
				PublicKey:  base.PublicKey(),
				Expiration: time.Now().Add(time.Hour),
			},
			Signature: []byte{0x01},
		}},
	}
	delegated, err := identity.NewDelegated(base, chain)
	require.NoError(t, err)
	return delegated
}

func statusLookupPaths(rid RequestID) [][][]byte {
	return [][][]byte{{[]byte("request_status"), rid.Bytes()}}
}

func newTestRouter(t *testing.T, transport Transport, signer CallSigner, cfg Config) *Router {
	t.Helper()
	if cfg.Account.Empty() {
		cfg.Account = principal.MustFromRaw([]byte{0xAA, 0xBB})
	}
	if cfg.ParseCertificate == nil {
		cfg.ParseCertificate = func(raw []byte) (Certificate, error) {
			return &fakeCertificate{values: map[string][]byte{}}, nil
		}
	}
	r, err := NewRouter(transport, signer, cfg)
	require.NoError(t, err)
	return r
}

func TestSignerCallCachesCertificateOnce(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	signer := &fakeCallSigner{certificate: []byte("certified-bytes")}
	r := newTestRouter(t, &fakeTransport{}, signer, Config{})

	res, err := r.Call(context.Background(), canister, CallOptions{Method: "greet", Arg: []byte{0x01}})
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, res.Status)

	// The returned id matches the canonical hash of the signed content.
	want := RequestIDFromContent(remotesigner.Content{
		RequestType:   "call",
		Sender:        r.Sender(),
		CanisterID:    canister,
		Method:        "greet",
		Arg:           []byte{0x01},
		IngressExpiry: 42,
	})
	require.Equal(t, want, res.RequestID)

	body, err := r.ReadState(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(res.RequestID)})
	require.NoError(t, err)
	require.Equal(t, []byte("certified-bytes"), body)

	_, err = r.ReadState(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(res.RequestID)})
	apiErr, ok := apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeMissingCorrelation, apiErr.Code)
	require.Equal(t, res.RequestID.String(), apiErr.RequestID())
}

func TestDelegatedCallRoutesReadStateThroughTransport(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	rid := RequestID{0xAB}
	transport := &fakeTransport{
		callResult:    CallResult{RequestID: rid, Status: "received"},
		readStateBody: []byte("transport-state"),
	}
	provider := &fakeProvider{id: testDelegated(t)}
	signer := &fakeCallSigner{}
	r := newTestRouter(t, transport, signer, Config{Delegation: provider})

	res, err := r.Call(context.Background(), canister, CallOptions{Method: "greet"})
	require.NoError(t, err)
	require.Equal(t, rid, res.RequestID)
	require.Equal(t, int64(0), signer.calls.Load(), "delegated call must not reach the signer")
	require.Equal(t, provider.id.Sender(), transport.lastIdentity.Sender())

	body, err := r.ReadState(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(rid)})
	require.NoError(t, err)
	require.Equal(t, []byte("transport-state"), body)
	require.Equal(t, int64(1), transport.readCalls.Load())

	// The marker is single use.
	_, err = r.ReadState(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(rid)})
	apiErr, ok := apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeMissingCorrelation, apiErr.Code)
}

func TestDelegationScopeControlsRouting(t *testing.T) {
	inScope := principal.MustFromRaw([]byte{0x01})
	outOfScope := principal.MustFromRaw([]byte{0x02})
	transport := &fakeTransport{callResult: CallResult{RequestID: RequestID{0x01}}}
	provider := &fakeProvider{id: testDelegated(t), targets: []principal.Principal{inScope}}
	signer := &fakeCallSigner{certificate: []byte("cert")}
	r := newTestRouter(t, transport, signer, Config{Delegation: provider})

	_, err := r.Call(context.Background(), inScope, CallOptions{Method: "m"})
	require.NoError(t, err)
	require.Equal(t, int64(0), signer.calls.Load())

	_, err = r.Call(context.Background(), outOfScope, CallOptions{Method: "m"})
	require.NoError(t, err)
	require.Equal(t, int64(1), signer.calls.Load(), "targets outside the delegation scope go to the signer")
}

func TestContentMismatchIsProtocolViolation(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	signer := &fakeCallSigner{
		certificate: []byte("cert"),
		mutate: func(c *remotesigner.Content) {
			c.Method = "something-else"
		},
	}
	r := newTestRouter(t, &fakeTransport{}, signer, Config{})

	_, err := r.Call(context.Background(), canister, CallOptions{Method: "greet"})
	apiErr, ok := apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeProtocolViolation, apiErr.Code)

	// Nothing was cached for the would-be request id.
	rid := RequestIDFromContent(remotesigner.Content{
		RequestType: "call", Sender: r.Sender(), CanisterID: canister,
		Method: "something-else", IngressExpiry: 42,
	})
	_, err = r.ReadState(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(rid)})
	apiErr, ok = apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeMissingCorrelation, apiErr.Code)
}

func TestQueryUpgradeResolvesReply(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	signer := &fakeCallSigner{certificate: []byte("raw-cert")}
	transport := &fakeTransport{rootKey: []byte("root")}

	var parsedRaw []byte
	var rid RequestID
	parse := func(raw []byte) (Certificate, error) {
		parsedRaw = raw
		return &fakeCertificate{values: map[string][]byte{
			"request_status/" + string(rid.Bytes()) + "/status": []byte("replied"),
			"request_status/" + string(rid.Bytes()) + "/reply":  []byte("pong"),
		}}, nil
	}
	r := newTestRouter(t, transport, signer, Config{ParseCertificate: parse})
	rid = RequestIDFromContent(remotesigner.Content{
		RequestType: "call", Sender: r.Sender(), CanisterID: canister,
		Method: "ping", IngressExpiry: 42,
	})

	res, err := r.Query(context.Background(), canister, QueryOptions{Method: "ping"})
	require.NoError(t, err)
	require.Equal(t, StatusReplied, res.Status)
	require.Equal(t, []byte("pong"), res.Reply)
	require.Equal(t, []byte("raw-cert"), parsedRaw)
	require.Equal(t, int64(1), transport.rootKeyCalls.Load(), "root key fetched lazily")

	// The upgraded call consumed its certificate.
	_, err = r.ReadState(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(rid)})
	apiErr, ok := apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeMissingCorrelation, apiErr.Code)
}

func TestQueryUpgradeRejectsUnrepliedStatus(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	signer := &fakeCallSigner{certificate: []byte("raw-cert")}
	var rid RequestID
	parse := func(raw []byte) (Certificate, error) {
		return &fakeCertificate{values: map[string][]byte{
			"request_status/" + string(rid.Bytes()) + "/status": []byte("processing"),
		}}, nil
	}
	r := newTestRouter(t, &fakeTransport{rootKey: []byte("root")}, signer, Config{ParseCertificate: parse})
	rid = RequestIDFromContent(remotesigner.Content{
		RequestType: "call", Sender: r.Sender(), CanisterID: canister,
		Method: "ping", IngressExpiry: 42,
	})

	_, err := r.Query(context.Background(), canister, QueryOptions{Method: "ping"})
	apiErr, ok := apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeNotReplied, apiErr.Code)
}

func TestQueryUpgradeRejectsBadCertificate(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	signer := &fakeCallSigner{certificate: []byte("raw-cert")}
	parse := func(raw []byte) (Certificate, error) {
		return &fakeCertificate{verifyErr: errors.New("signature mismatch")}, nil
	}
	r := newTestRouter(t, &fakeTransport{rootKey: []byte("root")}, signer, Config{ParseCertificate: parse})

	_, err := r.Query(context.Background(), canister, QueryOptions{Method: "ping"})
	apiErr, ok := apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeCertificateInvalid, apiErr.Code)
}

func TestDelegatedQuerySkipsUpgrade(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	transport := &fakeTransport{queryResult: QueryResult{Status: StatusReplied, Reply: []byte("direct")}}
	provider := &fakeProvider{id: testDelegated(t)}
	signer := &fakeCallSigner{}
	r := newTestRouter(t, transport, signer, Config{Delegation: provider})

	res, err := r.Query(context.Background(), canister, QueryOptions{Method: "ping"})
	require.NoError(t, err)
	require.Equal(t, []byte("direct"), res.Reply)
	require.Equal(t, int64(0), signer.calls.Load())
}

func TestReadStateRejectsMalformedPaths(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	r := newTestRouter(t, &fakeTransport{}, &fakeCallSigner{}, Config{})

	cases := []struct {
		name  string
		paths [][][]byte
	}{
		{name: "no paths"},
		{name: "two paths", paths: [][][]byte{{[]byte("request_status"), make([]byte, 32)}, {[]byte("time")}}},
		{name: "one segment", paths: [][][]byte{{[]byte("request_status")}}},
		{name: "three segments", paths: [][][]byte{{[]byte("request_status"), make([]byte, 32), []byte("status")}}},
		{name: "wrong prefix", paths: [][][]byte{{[]byte("time"), make([]byte, 32)}}},
		{name: "short id", paths: [][][]byte{{[]byte("request_status"), []byte{0x01}}}},
	}
	for _, tc := range cases {
		_, err := r.ReadState(context.Background(), canister, ReadStateOptions{Paths: tc.paths})
		apiErr, ok := apierrors.FromError(err)
		require.True(t, ok, tc.name)
		require.Equal(t, apierrors.CodeInvalidReadState, apiErr.Code, tc.name)
	}
}

func TestCreateReadStateRequestDoesNotConsume(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	rid := RequestID{0xCD}
	transport := &fakeTransport{
		callResult:    CallResult{RequestID: rid},
		readStateBody: []byte("state"),
	}
	provider := &fakeProvider{id: testDelegated(t)}
	r := newTestRouter(t, transport, &fakeCallSigner{}, Config{Delegation: provider})

	_, err := r.Call(context.Background(), canister, CallOptions{Method: "m"})
	require.NoError(t, err)

	req, err := r.CreateReadStateRequest(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(rid)})
	require.NoError(t, err)
	require.Equal(t, []byte("signed"), req.Envelope)

	// The marker survived and ReadState still succeeds.
	body, err := r.ReadState(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(rid)})
	require.NoError(t, err)
	require.Equal(t, []byte("state"), body)
}

func TestCreateReadStateRequestSignerPathReturnsShell(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	r := newTestRouter(t, &fakeTransport{}, &fakeCallSigner{certificate: []byte("cert")}, Config{})

	res, err := r.Call(context.Background(), canister, CallOptions{Method: "m"})
	require.NoError(t, err)

	req, err := r.CreateReadStateRequest(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(res.RequestID)})
	require.NoError(t, err)
	require.Empty(t, req.Envelope)
	require.Equal(t, statusLookupPaths(res.RequestID), req.Paths)
}

func TestDelegationFailureSurfacesAsUnavailable(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	provider := &fakeProvider{err: errors.New("signer is down")}
	r := newTestRouter(t, &fakeTransport{}, &fakeCallSigner{}, Config{Delegation: provider})

	_, err := r.Call(context.Background(), canister, CallOptions{Method: "m"})
	apiErr, ok := apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeDelegationUnavailable, apiErr.Code)
}

func TestRoutersDoNotShareState(t *testing.T) {
	canister := principal.MustFromRaw([]byte{0x01})
	signer := &fakeCallSigner{certificate: []byte("cert")}
	a := newTestRouter(t, &fakeTransport{}, signer, Config{})
	b := newTestRouter(t, &fakeTransport{}, signer, Config{})

	res, err := a.Call(context.Background(), canister, CallOptions{Method: "m"})
	require.NoError(t, err)

	_, err = b.ReadState(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(res.RequestID)})
	apiErr, ok := apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeMissingCorrelation, apiErr.Code)

	_, err = a.ReadState(context.Background(), canister, ReadStateOptions{Paths: statusLookupPaths(res.RequestID)})
	require.NoError(t, err)
}
