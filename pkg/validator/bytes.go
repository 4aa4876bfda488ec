package validator

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Encoding 描述请求体里二进制字段的字符串编码。
type Encoding string

const (
	EncodingHex    Encoding = "hex"
	EncodingBase64 Encoding = "base64"
)

// NormalizeEncoding 将用户输入转换为内部常量，空值默认 hex。
func NormalizeEncoding(raw string) (Encoding, error) {
	switch strings.ToLower(raw) {
	case "", string(EncodingHex):
		return EncodingHex, nil
	case string(EncodingBase64):
		return EncodingBase64, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", raw)
	}
}

// requestIDLen 是 request id 解码后的固定长度。
const requestIDLen = 32

var errRequestIDNot32Bytes = errors.New("request id must decode to 32 bytes")

// DecodeBytes 将二进制字段解码，空字符串视为空字节。
func DecodeBytes(value string, enc Encoding) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	switch enc {
	case EncodingHex:
		decoded, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid hex value: %w", err)
		}
		return decoded, nil
	case EncodingBase64:
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 value: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
}

// DecodeRequestID 将 request id 解码并验证长度。
func DecodeRequestID(value string, enc Encoding) ([]byte, error) {
	decoded, err := DecodeBytes(value, enc)
	if err != nil {
		return nil, err
	}
	if len(decoded) != requestIDLen {
		return nil, errRequestIDNot32Bytes
	}
	return decoded, nil
}
