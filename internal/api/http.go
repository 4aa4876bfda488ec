package agentapi

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/olekid/signer-agent/internal/agent"
	"github.com/olekid/signer-agent/pkg/apierrors"
	"github.com/olekid/signer-agent/pkg/principal"
	"github.com/olekid/signer-agent/pkg/validator"
)

// HTTPHandler 实现 `/v1/call` `/v1/query` `/v1/read_state` HTTP/JSON 接口。
type HTTPHandler struct {
	backend Backend
}

// NewHTTPHandler 构造 HTTP handler。
func NewHTTPHandler(backend Backend) *HTTPHandler {
	if backend == nil {
		panic("agent backend is required")
	}
	return &HTTPHandler{backend: backend}
}

// Register 将 handler 注册到 mux。
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/call", h.handleCall)
	mux.HandleFunc("/v1/query", h.handleQuery)
	mux.HandleFunc("/v1/read_state", h.handleReadState)
	mux.HandleFunc("/v1/read_state_request", h.handleCreateReadStateRequest)
	mux.HandleFunc("/v1/status", h.handleStatus)
}

type callRequestBody struct {
	CanisterID string `json:"canisterId"`
	Method     string `json:"method"`
	Arg        string `json:"arg"`
	Encoding   string `json:"encoding"`
}

type callResponseBody struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

type queryResponseBody struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

type readStateRequestBody struct {
	CanisterID string `json:"canisterId"`
	RequestID  string `json:"requestId"`
	Encoding   string `json:"encoding"`
}

type readStateResponseBody struct {
	Body string `json:"body"`
}

type readStateRequestResponseBody struct {
	Paths    [][]string `json:"paths"`
	Envelope string     `json:"envelope,omitempty"`
}

type statusResponseBody struct {
	Version string `json:"version"`
	RootKey string `json:"rootKey,omitempty"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func (h *HTTPHandler) handleCall(w http.ResponseWriter, r *http.Request) {
	canister, opts, ok := h.decodeCallBody(w, r)
	if !ok {
		return
	}
	res, err := h.backend.Call(r.Context(), canister, opts)
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, callResponseBody{
		RequestID: res.RequestID.String(),
		Status:    res.Status,
	})
}

func (h *HTTPHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	canister, opts, ok := h.decodeCallBody(w, r)
	if !ok {
		return
	}
	res, err := h.backend.Query(r.Context(), canister, agent.QueryOptions(opts))
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, queryResponseBody{
		Status: res.Status,
		Reply:  base64.StdEncoding.EncodeToString(res.Reply),
	})
}

func (h *HTTPHandler) handleReadState(w http.ResponseWriter, r *http.Request) {
	canister, paths, ok := h.decodeReadStateBody(w, r)
	if !ok {
		return
	}
	body, err := h.backend.ReadState(r.Context(), canister, agent.ReadStateOptions{Paths: paths})
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, readStateResponseBody{
		Body: base64.StdEncoding.EncodeToString(body),
	})
}

func (h *HTTPHandler) handleCreateReadStateRequest(w http.ResponseWriter, r *http.Request) {
	canister, paths, ok := h.decodeReadStateBody(w, r)
	if !ok {
		return
	}
	req, err := h.backend.CreateReadStateRequest(r.Context(), canister, agent.ReadStateOptions{Paths: paths})
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	payload := readStateRequestResponseBody{Paths: encodePaths(req.Paths)}
	if len(req.Envelope) > 0 {
		payload.Envelope = base64.StdEncoding.EncodeToString(req.Envelope)
	}
	h.writeJSON(w, http.StatusOK, payload)
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "GET required"))
		return
	}
	status, err := h.backend.Status(r.Context())
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponseBody{
		Version: status.Version,
		RootKey: hex.EncodeToString(status.RootKey),
	})
}

func (h *HTTPHandler) decodeCallBody(w http.ResponseWriter, r *http.Request) (principal.Principal, agent.CallOptions, bool) {
	if r.Method != http.MethodPost {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "POST required"))
		return principal.Principal{}, agent.CallOptions{}, false
	}
	var body callRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "invalid JSON body"))
		return principal.Principal{}, agent.CallOptions{}, false
	}
	if body.Method == "" {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "method is required"))
		return principal.Principal{}, agent.CallOptions{}, false
	}
	canister, err := principal.FromText(body.CanisterID)
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "invalid canisterId"))
		return principal.Principal{}, agent.CallOptions{}, false
	}
	encoding, err := validator.NormalizeEncoding(body.Encoding)
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, err.Error()))
		return principal.Principal{}, agent.CallOptions{}, false
	}
	arg, err := validator.DecodeBytes(body.Arg, encoding)
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, err.Error()))
		return principal.Principal{}, agent.CallOptions{}, false
	}
	return canister, agent.CallOptions{Method: body.Method, Arg: arg}, true
}

func (h *HTTPHandler) decodeReadStateBody(w http.ResponseWriter, r *http.Request) (principal.Principal, [][][]byte, bool) {
	if r.Method != http.MethodPost {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "POST required"))
		return principal.Principal{}, nil, false
	}
	var body readStateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "invalid JSON body"))
		return principal.Principal{}, nil, false
	}
	canister, err := principal.FromText(body.CanisterID)
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "invalid canisterId"))
		return principal.Principal{}, nil, false
	}
	encoding, err := validator.NormalizeEncoding(body.Encoding)
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, err.Error()))
		return principal.Principal{}, nil, false
	}
	rid, err := validator.DecodeRequestID(body.RequestID, encoding)
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, err.Error()))
		return principal.Principal{}, nil, false
	}
	paths := [][][]byte{{[]byte("request_status"), rid}}
	return canister, paths, true
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *HTTPHandler) writeUnknownError(w http.ResponseWriter, err error) {
	if apiErr, ok := apierrors.FromError(err); ok {
		h.writeAPIError(w, apiErr)
		return
	}
	h.writeAPIError(w, apierrors.New(apierrors.Code("INTERNAL_ERROR"), "internal error"))
}

func (h *HTTPHandler) writeAPIError(w http.ResponseWriter, apiErr *apierrors.Error) {
	if apiErr == nil {
		apiErr = apierrors.New(apierrors.Code("INTERNAL_ERROR"), "internal error")
	}
	status := apierrors.HTTPStatus(apiErr.Code)
	resp := errorResponse{
		Code:      string(apiErr.Code),
		Message:   apiErr.Error(),
		RequestID: apiErr.RequestID(),
	}
	h.writeJSON(w, status, resp)
}

func encodePaths(paths [][][]byte) [][]string {
	encoded := make([][]string, len(paths))
	for i, path := range paths {
		segs := make([]string, len(path))
		for j, seg := range path {
			segs[j] = base64.StdEncoding.EncodeToString(seg)
		}
		encoded[i] = segs
	}
	return encoded
}
