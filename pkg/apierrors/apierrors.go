package apierrors

import (
	"errors"

	"google.golang.org/grpc/codes"
)

// Code 表示统一业务错误码。
type Code string

const (
	// CodeInvalidArgument 表示调用方入参不合法。
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeProtocolViolation 表示 signer 返回的内容与请求不一致，属协议违规，不重试。
	CodeProtocolViolation Code = "PROTOCOL_VIOLATION"
	// CodeMissingCorrelation 表示 request id 找不到对应的缓存记录或标记。
	CodeMissingCorrelation Code = "MISSING_CORRELATION"
	// CodeInvalidReadState 表示 read_state 路径无法解析出 request id。
	CodeInvalidReadState Code = "INVALID_READ_STATE"
	// CodeNotReplied 表示证书中的请求状态不是 replied。
	CodeNotReplied Code = "NOT_REPLIED"
	// CodeCertificateInvalid 表示证书解析或验证失败。
	CodeCertificateInvalid Code = "CERTIFICATE_INVALID"
	// CodeDelegationUnavailable 表示无法获得可用的委托身份。
	CodeDelegationUnavailable Code = "DELEGATION_UNAVAILABLE"
	// CodeSignerUnavailable 表示外部 signer 暂不可用（限流/熔断/未接入）。
	CodeSignerUnavailable Code = "SIGNER_UNAVAILABLE"
	// CodeTransportUnavailable 表示底层传输暂不可用或未接入。
	CodeTransportUnavailable Code = "TRANSPORT_UNAVAILABLE"
)

var httpStatusMap = map[Code]int{
	CodeInvalidArgument:       400,
	CodeProtocolViolation:     502,
	CodeMissingCorrelation:    404,
	CodeInvalidReadState:      400,
	CodeNotReplied:            502,
	CodeCertificateInvalid:    502,
	CodeDelegationUnavailable: 503,
	CodeSignerUnavailable:     503,
	CodeTransportUnavailable:  503,
}

var grpcStatusMap = map[Code]codes.Code{
	CodeInvalidArgument:       codes.InvalidArgument,
	CodeProtocolViolation:     codes.FailedPrecondition,
	CodeMissingCorrelation:    codes.NotFound,
	CodeInvalidReadState:      codes.InvalidArgument,
	CodeNotReplied:            codes.FailedPrecondition,
	CodeCertificateInvalid:    codes.Unauthenticated,
	CodeDelegationUnavailable: codes.Unavailable,
	CodeSignerUnavailable:     codes.Unavailable,
	CodeTransportUnavailable:  codes.Unavailable,
}

// Error 表示带统一错误码的业务错误，本层所有失败都以它呈现。
type Error struct {
	Code      Code
	Message   string
	requestID string
}

// New 创建一个新的业务错误。
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithRequestID 附带相关的 request id，返回自身方便链式调用。
func (e *Error) WithRequestID(id string) *Error {
	e.requestID = id
	return e
}

// RequestID 返回关联的 request id，可能为空。
func (e *Error) RequestID() string {
	if e == nil {
		return ""
	}
	return e.requestID
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// FromError 尝试从通用 error 中解析业务错误。
func FromError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HTTPStatus 返回对应的 HTTP 状态码，未知错误默认 500。
func HTTPStatus(code Code) int {
	if status, ok := httpStatusMap[code]; ok {
		return status
	}
	return 500
}

// GRPCStatus 返回对应的 gRPC code，未知错误默认 Internal。
func GRPCStatus(code Code) codes.Code {
	if status, ok := grpcStatusMap[code]; ok {
		return status
	}
	return codes.Internal
}
