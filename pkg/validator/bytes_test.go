package validator

import (
	"strings"
	"testing"
)

func TestNormalizeEncoding(t *testing.T) {
	enc, err := NormalizeEncoding("")
	if err != nil || enc != EncodingHex {
		t.Fatalf("empty encoding: %v %v", enc, err)
	}
	enc, err = NormalizeEncoding("BASE64")
	if err != nil || enc != EncodingBase64 {
		t.Fatalf("base64 encoding: %v %v", enc, err)
	}
	if _, err := NormalizeEncoding("utf8"); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}

func TestDecodeBytes(t *testing.T) {
	decoded, err := DecodeBytes("4d49444c", EncodingHex)
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	if string(decoded) != "MIDL" {
		t.Fatalf("unexpected value %q", decoded)
	}
	decoded, err = DecodeBytes("", EncodingHex)
	if err != nil || decoded != nil {
		t.Fatalf("empty value should decode to nil, got %v %v", decoded, err)
	}
	if _, err := DecodeBytes("zzz", EncodingHex); err == nil {
		t.Fatal("expected error for invalid hex")
	}
	if _, err := DecodeBytes("!!!", EncodingBase64); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestDecodeRequestIDLength(t *testing.T) {
	decoded, err := DecodeRequestID(strings.Repeat("ab", 32), EncodingHex)
	if err != nil {
		t.Fatalf("decode request id: %v", err)
	}
	if len(decoded) != 32 {
		t.Fatalf("unexpected length %d", len(decoded))
	}
	if _, err := DecodeRequestID("abcd", EncodingHex); err == nil {
		t.Fatal("expected error for short request id")
	}
}
