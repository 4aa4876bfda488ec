package agentapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olekid/signer-agent/internal/agent"
	"github.com/olekid/signer-agent/pkg/apierrors"
	"github.com/olekid/signer-agent/pkg/principal"
)

func testCanisterText() string {
	return principal.MustFromRaw([]byte{0x01, 0x02}).String()
}

func TestHandleCallSuccess(t *testing.T) {
	rid := agent.RequestID{0xAB}
	handler := NewHTTPHandler(&stubBackend{
		callFn: func(_ context.Context, _ principal.Principal, opts agent.CallOptions) (agent.CallResult, error) {
			if opts.Method != "transfer" {
				t.Fatalf("method=%s", opts.Method)
			}
			if len(opts.Arg) != 2 {
				t.Fatalf("arg len=%d", len(opts.Arg))
			}
			return agent.CallResult{RequestID: rid, Status: agent.StatusSubmitted}, nil
		},
	})
	body := `{"canisterId":"` + testCanisterText() + `","method":"transfer","arg":"4d49","encoding":"hex"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/call", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.handleCall(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp callResponseBody
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RequestID != rid.String() {
		t.Fatalf("unexpected requestId %s", resp.RequestID)
	}
	if resp.Status != agent.StatusSubmitted {
		t.Fatalf("unexpected status %s", resp.Status)
	}
}

func TestHandleCallInvalidCanister(t *testing.T) {
	handler := NewHTTPHandler(&stubBackend{})
	body := `{"canisterId":"not-a-principal!","method":"m"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/call", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.handleCall(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != string(apierrors.CodeInvalidArgument) {
		t.Fatalf("unexpected code %s", resp.Code)
	}
}

func TestHandleQueryEncodesReply(t *testing.T) {
	handler := NewHTTPHandler(&stubBackend{
		queryFn: func(context.Context, principal.Principal, agent.QueryOptions) (agent.QueryResult, error) {
			return agent.QueryResult{Status: agent.StatusReplied, Reply: []byte("pong")}, nil
		},
	})
	body := `{"canisterId":"` + testCanisterText() + `","method":"ping"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.handleQuery(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp queryResponseBody
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Reply != base64.StdEncoding.EncodeToString([]byte("pong")) {
		t.Fatalf("unexpected reply %s", resp.Reply)
	}
}

func TestHandleReadStateBuildsStatusPath(t *testing.T) {
	var gotPaths [][][]byte
	handler := NewHTTPHandler(&stubBackend{
		readStateFn: func(_ context.Context, _ principal.Principal, opts agent.ReadStateOptions) ([]byte, error) {
			gotPaths = opts.Paths
			return []byte("state"), nil
		},
	})
	rid := strings.Repeat("ab", 32)
	body := `{"canisterId":"` + testCanisterText() + `","requestId":"` + rid + `","encoding":"hex"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/read_state", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.handleReadState(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if len(gotPaths) != 1 || len(gotPaths[0]) != 2 {
		t.Fatalf("unexpected paths shape %v", gotPaths)
	}
	if string(gotPaths[0][0]) != "request_status" {
		t.Fatalf("unexpected first segment %q", gotPaths[0][0])
	}
}

func TestHandleReadStateRejectsShortRequestID(t *testing.T) {
	handler := NewHTTPHandler(&stubBackend{})
	body := `{"canisterId":"` + testCanisterText() + `","requestId":"abcd"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/read_state", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.handleReadState(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestErrorResponseCarriesRequestID(t *testing.T) {
	rid := strings.Repeat("ab", 32)
	handler := NewHTTPHandler(&stubBackend{
		readStateFn: func(context.Context, principal.Principal, agent.ReadStateOptions) ([]byte, error) {
			return nil, apierrors.New(apierrors.CodeMissingCorrelation, "request unknown").WithRequestID(rid)
		},
	})
	body := `{"canisterId":"` + testCanisterText() + `","requestId":"` + rid + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/read_state", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.handleReadState(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RequestID != rid {
		t.Fatalf("unexpected requestId %s", resp.RequestID)
	}
}

func TestHandleStatusRequiresGet(t *testing.T) {
	handler := NewHTTPHandler(&stubBackend{})
	req := httptest.NewRequest(http.MethodPost, "/v1/status", nil)
	rr := httptest.NewRecorder()
	handler.handleStatus(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

type stubBackend struct {
	callFn      func(context.Context, principal.Principal, agent.CallOptions) (agent.CallResult, error)
	queryFn     func(context.Context, principal.Principal, agent.QueryOptions) (agent.QueryResult, error)
	readStateFn func(context.Context, principal.Principal, agent.ReadStateOptions) ([]byte, error)
	createFn    func(context.Context, principal.Principal, agent.ReadStateOptions) (agent.ReadStateRequest, error)
}

func (s *stubBackend) Call(ctx context.Context, canister principal.Principal, opts agent.CallOptions) (agent.CallResult, error) {
	if s.callFn == nil {
		return agent.CallResult{}, nil
	}
	return s.callFn(ctx, canister, opts)
}

func (s *stubBackend) Query(ctx context.Context, canister principal.Principal, opts agent.QueryOptions) (agent.QueryResult, error) {
	if s.queryFn == nil {
		return agent.QueryResult{}, nil
	}
	return s.queryFn(ctx, canister, opts)
}

func (s *stubBackend) ReadState(ctx context.Context, canister principal.Principal, opts agent.ReadStateOptions) ([]byte, error) {
	if s.readStateFn == nil {
		return nil, nil
	}
	return s.readStateFn(ctx, canister, opts)
}

func (s *stubBackend) CreateReadStateRequest(ctx context.Context, canister principal.Principal, opts agent.ReadStateOptions) (agent.ReadStateRequest, error) {
	if s.createFn == nil {
		return agent.ReadStateRequest{Paths: opts.Paths}, nil
	}
	return s.createFn(ctx, canister, opts)
}

func (s *stubBackend) Status(context.Context) (agent.TransportStatus, error) {
	return agent.TransportStatus{Version: "test"}, nil
}
